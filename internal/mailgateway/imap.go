// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mailgateway

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jhillyerd/enmime/v2"

	"github.com/JPMarichal/ccmwf/internal/config"
	"github.com/JPMarichal/ccmwf/internal/models"
	"github.com/JPMarichal/ccmwf/internal/resultmodel"
	"github.com/JPMarichal/ccmwf/internal/retry"
)

// imapConn is a single tagged-command IMAP4rev1 connection.
//
// Grounded on BrianLeishman-go-imap's Dialer (conn.go): a persistent TLS
// connection, an incrementing command tag, and line-oriented read/write.
// This client implements only the commands the Gateway contract needs
// (LOGIN, SELECT, UID SEARCH, UID FETCH, UID STORE) rather than the full
// protocol surface go-imap covers.
type imapConn struct {
	conn   net.Conn
	reader *textproto.Reader
	mu     sync.Mutex
	tagNum int
}

func dialIMAP(ctx context.Context, host string, port int) (*imapConn, error) {
	d := &net.Dialer{}
	raw, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resultmodel.ErrMailFetchFailed, err)
	}
	tlsConn := tls.Client(raw, &tls.Config{ServerName: host})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("%s: tls handshake: %w", resultmodel.ErrMailFetchFailed, err)
	}

	c := &imapConn{conn: tlsConn, reader: textproto.NewReader(bufio.NewReader(tlsConn))}
	if _, err := c.reader.ReadLine(); err != nil { // greeting
		return nil, fmt.Errorf("%s: read greeting: %w", resultmodel.ErrMailFetchFailed, err)
	}
	return c, nil
}

func (c *imapConn) nextTag() string {
	c.tagNum++
	return fmt.Sprintf("a%03d", c.tagNum)
}

// command sends a tagged command and collects untagged response lines
// until the matching tagged completion line, returning the untagged
// lines (without the leading "* ").
func (c *imapConn) command(format string, args ...any) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tag := c.nextTag()
	line := fmt.Sprintf(tag+" "+format, args...)
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", line); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	var untagged []string
	for {
		resp, err := c.reader.ReadLine()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		switch {
		case strings.HasPrefix(resp, "* "):
			untagged = append(untagged, strings.TrimPrefix(resp, "* "))
		case strings.HasPrefix(resp, tag+" "):
			status := strings.TrimPrefix(resp, tag+" ")
			if strings.HasPrefix(status, "OK") {
				return untagged, nil
			}
			return untagged, fmt.Errorf("imap command failed: %s", status)
		default:
			// Continuation or unrelated line; ignore.
		}
	}
}

func (c *imapConn) login(user, password string) error {
	_, err := c.command("LOGIN %s %s", quoteIMAP(user), quoteIMAP(password))
	return err
}

func (c *imapConn) selectMailbox(name string) error {
	_, err := c.command("SELECT %s", quoteIMAP(name))
	return err
}

func (c *imapConn) close() error {
	return c.conn.Close()
}

func quoteIMAP(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + replacer.Replace(s) + `"`
}

// IMAPGateway implements Gateway over a plain-credential IMAP4rev1
// connection.
type IMAPGateway struct {
	host     string
	port     int
	user     string
	password string
	marker   string
}

// NewIMAPGateway builds the IMAP-mediated mail gateway variant from cfg.
func NewIMAPGateway(cfg *config.Config) *IMAPGateway {
	return &IMAPGateway{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		marker:   cfg.ProcessedMarker,
	}
}

func (g *IMAPGateway) connect(ctx context.Context) (*imapConn, error) {
	conn, err := dialIMAP(ctx, g.host, g.port)
	if err != nil {
		return nil, err
	}
	if err := conn.login(g.user, g.password); err != nil {
		_ = conn.close()
		return nil, fmt.Errorf("%s: %w", resultmodel.ErrMailFetchFailed, err)
	}
	if err := conn.selectMailbox("INBOX"); err != nil {
		_ = conn.close()
		return nil, fmt.Errorf("%s: %w", resultmodel.ErrMailFetchFailed, err)
	}
	return conn, nil
}

// ListUnprocessed searches unseen messages and filters client-side by
// subject prefix, since IMAP SEARCH's HEADER SUBJECT is a substring match,
// not a prefix match.
func (g *IMAPGateway) ListUnprocessed(ctx context.Context, subjectPrefix string) ([]MessageRef, error) {
	var refs []MessageRef

	err := retry.Do(ctx, func(ctx context.Context) error {
		conn, err := g.connect(ctx)
		if err != nil {
			return err
		}
		defer conn.close()

		lines, err := conn.command(`UID SEARCH UNSEEN HEADER SUBJECT %s`, quoteIMAP(subjectPrefix))
		if err != nil {
			return fmt.Errorf("%s: %w", resultmodel.ErrMailFetchFailed, err)
		}

		uids := parseSearchUIDs(lines)
		refs = refs[:0]
		for _, uid := range uids {
			subject, err := g.fetchSubject(conn, uid)
			if err != nil {
				continue
			}
			if !strings.HasPrefix(subject, subjectPrefix) {
				continue
			}
			refs = append(refs, MessageRef{ID: uid, Subject: subject})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (g *IMAPGateway) fetchSubject(conn *imapConn, uid string) (string, error) {
	lines, err := conn.command("UID FETCH %s (BODY[HEADER.FIELDS (SUBJECT)])", uid)
	if err != nil {
		return "", err
	}
	for _, l := range lines {
		if idx := strings.Index(strings.ToUpper(l), "SUBJECT:"); idx >= 0 {
			return strings.TrimSpace(l[idx+len("SUBJECT:"):]), nil
		}
	}
	return "", nil
}

// Fetch retrieves the full RFC 822 message for ref and parses its MIME
// structure into plain/HTML bodies and decoded attachments.
//
// Grounded on BrianLeishman-go-imap's use of jhillyerd/enmime to turn a
// fetched RFC 822 body into a navigable MIME envelope.
func (g *IMAPGateway) Fetch(ctx context.Context, ref MessageRef) (*models.IncomingMessage, error) {
	var msg *models.IncomingMessage

	err := retry.Do(ctx, func(ctx context.Context) error {
		conn, err := g.connect(ctx)
		if err != nil {
			return err
		}
		defer conn.close()

		lines, err := conn.command("UID FETCH %s (RFC822)", ref.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", resultmodel.ErrMailFetchFailed, err)
		}

		raw := strings.Join(lines, "\r\n")
		envelope, err := enmime.ReadEnvelope(strings.NewReader(raw))
		if err != nil {
			return fmt.Errorf("%s: parse mime: %w", resultmodel.ErrMailFetchFailed, err)
		}

		attachments := make([]models.Attachment, 0, len(envelope.Attachments))
		for _, a := range envelope.Attachments {
			attachments = append(attachments, models.Attachment{
				OriginalName: a.FileName,
				ContentType:  a.ContentType,
				Bytes:        a.Content,
				Size:         len(a.Content),
			})
		}

		msg = &models.IncomingMessage{
			ID:          ref.ID,
			Subject:     ref.Subject,
			ReceivedAt:  time.Now().UTC(),
			BodyText:    envelope.Text,
			BodyHTML:    envelope.HTML,
			Attachments: attachments,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkProcessed sets the IMAP \Seen flag and a keyword flag matching the
// configured marker, which is naturally idempotent: STORE with +FLAGS on
// an already-set flag is a no-op.
func (g *IMAPGateway) MarkProcessed(ctx context.Context, ref MessageRef) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		conn, err := g.connect(ctx)
		if err != nil {
			return err
		}
		defer conn.close()

		_, err = conn.command(`UID STORE %s +FLAGS (\Seen %s)`, ref.ID, g.marker)
		if err != nil {
			return fmt.Errorf("%s: %w", resultmodel.ErrMailFetchFailed, err)
		}
		return nil
	})
}

func parseSearchUIDs(lines []string) []string {
	var uids []string
	for _, l := range lines {
		if !strings.HasPrefix(l, "SEARCH") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(l, "SEARCH"))
		uids = append(uids, fields...)
	}
	return uids
}
