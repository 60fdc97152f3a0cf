// Package ingest imports seed tracklists into the catalog from local
// files, HTTP URLs, and FTP servers, in CSV or XLSX form.
package ingest

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/halcyon-research/tracklist-cli/internal/resilience"
)

const sourceTimeout = 30 * time.Second

// Open resolves a seed source reference to a byte stream. Plain paths and
// file:// URLs read from disk; http(s):// and ftp:// fetch remotely.
// The caller must close the returned ReadCloser.
func Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Windows drive letters parse as single-letter schemes.
		return openFile(ref)
	}

	switch u.Scheme {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		return openHTTP(ctx, ref)
	case "ftp":
		return openFTP(ctx, u)
	default:
		return nil, eris.Errorf("ingest: unsupported source scheme %q", u.Scheme)
	}
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	return f, nil
}

func openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: build request")
	}

	client := &http.Client{Timeout: sourceTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "ingest: GET %s", rawURL), 0)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		err := eris.Errorf("ingest: GET %s: status %d", rawURL, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return resp.Body, nil
}

// ftpConnReader closes the FTP response and connection together.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "ingest: close ftp response")
	}
	return eris.Wrap(quitErr, "ingest: quit ftp connection")
}

func openFTP(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" {
		return nil, eris.New("ingest: empty path in ftp url")
	}

	zap.L().Debug("ingest: ftp connect", zap.String("host", host), zap.String("path", u.Path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(sourceTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "ingest: ftp dial %s", host), 0)
	}

	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, eris.Wrapf(err, "ingest: ftp login %s", host)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		conn.Quit()
		return nil, resilience.NewTransientError(eris.Wrapf(err, "ingest: ftp retr %s", u.Path), 0)
	}
	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// Format identifies the seed file format from the source reference.
func Format(ref string) string {
	path := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		path = u.Path
	}
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".xlsx"):
		return "xlsx"
	default:
		return "csv"
	}
}
