package manager

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// errStreamDone is returned by an onData callback to end the stream early.
var errStreamDone = errors.New("stream done")

// readSSE reads "data:" lines from r and hands each payload to onData until
// EOF, "[DONE]" or errStreamDone. Blank lines and other SSE fields are
// skipped.
func readSSE(ctx context.Context, r io.Reader, onData func(data string) error) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			l := strings.TrimSpace(line)
			if strings.HasPrefix(strings.ToLower(l), "data:") {
				data := strings.TrimSpace(l[len("data:"):])
				if data == "[DONE]" {
					return nil
				}
				if cbErr := onData(data); cbErr != nil {
					if errors.Is(cbErr, errStreamDone) {
						return nil
					}
					return cbErr
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// newHTTPClient builds the client shared by the HTTP backends. Timeout is
// left at 0: requests carry their deadline in the context.
func newHTTPClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr, Timeout: 0}
}

// httpStatusError reads a bounded tail of a non-2xx body into an error.
func httpStatusError(prefix string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return errors.New(prefix + ": " + resp.Status + ": " + strings.TrimSpace(string(b)))
}
