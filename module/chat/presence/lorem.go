package presence

import (
	"math/rand"
	"strings"
)

var loremWords = strings.Fields(`lorem ipsum dolor sit amet consectetur adipiscing elit sed do
eiusmod tempor incididunt ut labore et dolore magna aliqua enim ad minim veniam quis nostrud
exercitation ullamco laboris nisi aliquip ex ea commodo consequat duis aute irure in
reprehenderit voluptate velit esse cillum fugiat nulla pariatur excepteur sint occaecat
cupidatat non proident sunt culpa qui officia deserunt mollit anim id est laborum`)

// Lorem returns between min and max words, capitalised.
func Lorem(r *rand.Rand, min, max int) string {
	if max < min {
		max = min
	}
	n := min + r.Intn(max-min+1)
	words := make([]string, n)
	for i := range words {
		words[i] = loremWords[r.Intn(len(loremWords))]
	}
	s := strings.Join(words, " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
