package callback

import (
	"time"

	"github.com/sanaa360/creator-cli/internal/misc"
)

// PromptFunc reads a line of input from the creator after printing message.
// An empty return means the creator declined and the wait continues.
type PromptFunc func(message string) (string, error)

// AwaitCallback waits for the browser redirect on server. When prompt is
// non-nil, after promptDelay without a redirect the creator is offered a
// manual paste of the full callback URL. The redirect targets localhost on
// the machine running this process, so a login opened on another machine
// can never reach the listener; the pasted URL is the way back in.
func AwaitCallback(server *Server, prompt PromptFunc, promptDelay, timeout time.Duration) (*misc.OAuthCallback, error) {
	callbackCh := make(chan *misc.OAuthCallback, 1)
	callbackErrCh := make(chan error, 1)
	go func() {
		result, errWait := server.WaitForCallback(timeout)
		if errWait != nil {
			callbackErrCh <- errWait
			return
		}
		callbackCh <- result
	}()

	var promptC <-chan time.Time
	if prompt != nil {
		promptTimer := time.NewTimer(promptDelay)
		defer promptTimer.Stop()
		promptC = promptTimer.C
	}

	for {
		select {
		case result := <-callbackCh:
			return result, nil
		case errWait := <-callbackErrCh:
			return nil, errWait
		case <-promptC:
			promptC = nil
			// The redirect may have landed while the timer fired.
			select {
			case result := <-callbackCh:
				return result, nil
			case errWait := <-callbackErrCh:
				return nil, errWait
			default:
			}
			input, errPrompt := prompt("Paste the TikTok callback URL (or press Enter to keep waiting): ")
			if errPrompt != nil {
				return nil, errPrompt
			}
			parsed, errParse := misc.ParseOAuthCallback(input)
			if errParse != nil {
				return nil, errParse
			}
			if parsed == nil {
				continue
			}
			return parsed, nil
		}
	}
}
