package logger

// Permission implementations indicate whether the caller making a log request
// is allowed to create new log entries
type Permission interface {
	AllowLogging() bool
}

type allow struct{}

func (allow) AllowLogging() bool {
	return true
}

type deny struct{}

func (deny) AllowLogging() bool {
	return false
}

// Allow indicates that the logging request should be allowed
var Allow Permission = allow{}

// Deny drops the logging request. Useful for components that are quiet by
// default
var Deny Permission = deny{}
