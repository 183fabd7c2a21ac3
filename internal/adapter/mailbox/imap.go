package mailbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Message is a fetched notification: its mailbox sequence number and the full
// RFC 822 bytes.
type Message struct {
	SeqNum uint32
	Body   []byte
}

// Fetcher retrieves notification messages received on or after since.
type Fetcher interface {
	FetchSince(ctx context.Context, since time.Time) ([]Message, error)
}

// IMAPConfig holds the connection settings for an IMAPFetcher.
type IMAPConfig struct {
	Addr     string // host:port, implicit TLS
	User     string
	Password string
	Folder   string
	Subject  string
	Timeout  time.Duration
}

// IMAPFetcher reads notifications over IMAPS. Each call opens a fresh session
// and logs out before returning; no connection outlives a pass.
type IMAPFetcher struct {
	cfg    IMAPConfig
	logger *slog.Logger
}

// NewIMAPFetcher creates an IMAP fetcher.
func NewIMAPFetcher(cfg IMAPConfig, logger *slog.Logger) *IMAPFetcher {
	return &IMAPFetcher{cfg: cfg, logger: logger}
}

// FetchSince logs in, selects the folder read-only and fetches every message
// matching the subject filter with an internal date on or after since.
func (f *IMAPFetcher) FetchSince(ctx context.Context, since time.Time) ([]Message, error) {
	dialer := &net.Dialer{Timeout: f.cfg.Timeout}
	c, err := client.DialWithDialerTLS(dialer, f.cfg.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", f.cfg.Addr, err)
	}
	c.Timeout = f.cfg.Timeout
	defer func() {
		if err := c.Logout(); err != nil {
			f.logger.Debug("imap logout", "error", err)
		}
	}()

	// go-imap v1 has no context support; closing the connection unblocks any
	// in-flight command when ctx ends first.
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if err := c.Login(f.cfg.User, f.cfg.Password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if _, err := c.Select(f.cfg.Folder, true); err != nil {
		return nil, fmt.Errorf("select %s: %w", f.cfg.Folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	if f.cfg.Subject != "" {
		criteria.Header.Add("Subject", f.cfg.Subject)
	}
	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(seqNums) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNums...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	ch := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, ch)
	}()

	messages := make([]Message, 0, len(seqNums))
	for msg := range ch {
		lit := msg.GetBody(section)
		if lit == nil {
			f.logger.Warn("message has no body", "seq_num", msg.SeqNum)
			continue
		}
		body, err := io.ReadAll(lit)
		if err != nil {
			f.logger.Warn("read message body", "seq_num", msg.SeqNum, "error", err)
			continue
		}
		messages = append(messages, Message{SeqNum: msg.SeqNum, Body: body})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return messages, nil
}
