package safe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustNotNil(t *testing.T) {
	var m map[string]int
	var p *int
	assert.Panics(t, func() { MustNotNil(nil, "nil") })
	assert.Panics(t, func() { MustNotNil(m, "map") })
	assert.Panics(t, func() { MustNotNil(p, "ptr") })
	assert.NotPanics(t, func() { MustNotNil(1, "int") })
	assert.NotPanics(t, func() { MustNotNil(&struct{}{}, "struct") })
}

func TestRun_RecoversPanic(t *testing.T) {
	ran := false
	assert.NotPanics(t, func() {
		Run(func() {
			ran = true
			panic("boom")
		})
	})
	assert.True(t, ran)
}

func TestSafeGo(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	SafeGo(func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()
}
