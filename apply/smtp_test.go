package apply

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestEncode(t *testing.T) {
	msg := &Message{
		To:      "jobs@acme.example",
		Subject: "Application for SOC Analyst (Zürich)",
		Body:    "Dear hiring team,\nplease find my CV attached.",
		Attachments: []Attachment{
			{Filename: ResumeFilename, ContentType: "text/plain; charset=utf-8", Data: []byte(strings.Repeat("CV line\n", 30))},
		},
	}
	raw, err := encode("me@example.com", "jobs@acme.example", msg, t0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	dec := new(mime.WordDecoder)
	if subject, _ := dec.DecodeHeader(parsed.Header.Get("Subject")); subject != msg.Subject {
		t.Errorf("subject = %q", subject)
	}
	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("content type = %q, %v", mediaType, err)
	}

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	text, err := mr.NextPart()
	if err != nil {
		t.Fatalf("text part: %v", err)
	}
	if body, _ := io.ReadAll(text); strings.ReplaceAll(string(body), "\r\n", "\n") != msg.Body {
		t.Errorf("body = %q", body)
	}
	att, err := mr.NextPart()
	if err != nil {
		t.Fatalf("attachment part: %v", err)
	}
	if att.FileName() != ResumeFilename {
		t.Errorf("filename = %q", att.FileName())
	}
	if data, _ := io.ReadAll(base64.NewDecoder(base64.StdEncoding, att)); !bytes.Equal(data, msg.Attachments[0].Data) {
		t.Errorf("attachment = %q", data)
	}
	if _, err := mr.NextPart(); err != io.EOF {
		t.Errorf("extra part: %v", err)
	}
}

func TestEncode_RejectsHeaderInjection(t *testing.T) {
	msg := &Message{To: "jobs@acme.example", Subject: "Hi\r\nBcc: everyone@example.com"}
	if _, err := encode("me@example.com", msg.To, msg, t0); err == nil {
		t.Error("subject with CRLF accepted")
	}
}

// smtpServer speaks just enough SMTP to accept one message, without
// STARTTLS or AUTH.
func smtpServer(t *testing.T) (port int, received <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		tp.PrintfLine("220 localhost ESMTP")
		var envelope []string
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			switch cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0]); cmd {
			case "EHLO", "HELO":
				tp.PrintfLine("250 localhost")
			case "MAIL", "RCPT":
				envelope = append(envelope, line)
				tp.PrintfLine("250 OK")
			case "DATA":
				tp.PrintfLine("354 go ahead")
				data, _ := io.ReadAll(tp.DotReader())
				out <- strings.Join(envelope, "\n") + "\n" + string(data)
				tp.PrintfLine("250 queued")
			case "QUIT":
				tp.PrintfLine("221 bye")
				return
			default:
				tp.PrintfLine("502 not implemented")
			}
		}
	}()
	_, p, _ := net.SplitHostPort(ln.Addr().String())
	port, _ = strconv.Atoi(p)
	return port, out
}

func TestSMTPMailer_Send(t *testing.T) {
	port, received := smtpServer(t)
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: port, From: "Candidate <me@example.com>"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.Send(ctx, &Message{To: "jobs@acme.example", Subject: "Application", Body: "Hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		for _, want := range []string{"MAIL FROM:<me@example.com>", "RCPT TO:<jobs@acme.example>", "Subject: Application"} {
			if !strings.Contains(got, want) {
				t.Errorf("transcript missing %q:\n%s", want, got)
			}
		}
		if _, err := mail.ReadMessage(bufio.NewReader(strings.NewReader(got[strings.Index(got, "From:"):]))); err != nil {
			t.Errorf("received message does not parse: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestSMTPMailer_BadRecipient(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "me@example.com"})
	if err := m.Send(context.Background(), &Message{To: "not an address"}); err == nil {
		t.Error("invalid recipient accepted")
	}
}
