package dispatch

import "github.com/valyala/fasthttp"

// User-facing assistant texts injected when a dispatch cannot produce a real
// reply. These render in the transcript as normal assistant messages.
const (
	msgRateLimited  = "We are getting a lot of requests. Please wait a moment and try again."
	msgUnauthorized = "Chat is unavailable. Missing or invalid API key."
	msgGeneric      = "Sorry, something went wrong. Please try again."
	msgNoReply      = "Sorry, I could not generate a response right now."
)

// ErrorText maps an HTTP status from the chat service to the assistant
// message shown to the user. Zero status (network failure) gets the generic
// text.
func ErrorText(status int) string {
	switch status {
	case fasthttp.StatusTooManyRequests:
		return msgRateLimited
	case fasthttp.StatusUnauthorized:
		return msgUnauthorized
	default:
		return msgGeneric
	}
}
