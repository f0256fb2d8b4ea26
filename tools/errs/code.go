package errs

const (
	ServerInternalError = 500

	ArgsError         = 1001
	NotSupportedError = 1002
	RejectedError     = 1003
	CancelledError    = 1004
	NotFoundError     = 1005

	TokenInvalidError = 1501

	LoadFailedError   = 2001
	WriteFailedError  = 2002
	DeleteFailedError = 2003
)

var (
	ErrInternalServer = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrArgs           = NewCodeError(ArgsError, "ArgsError")
	ErrNotSupported   = NewCodeError(NotSupportedError, "NotSupported")
	ErrRejected       = NewCodeError(RejectedError, "Rejected")
	ErrCancelled      = NewCodeError(CancelledError, "Cancelled")
	ErrNotFound       = NewCodeError(NotFoundError, "NotFound")
	ErrTokenInvalid   = NewCodeError(TokenInvalidError, "TokenInvalid")

	ErrLoadFailed   = NewCodeError(LoadFailedError, "LoadFailed")
	ErrWriteFailed  = NewCodeError(WriteFailedError, "WriteFailed")
	ErrDeleteFailed = NewCodeError(DeleteFailedError, "DeleteFailed")
)
