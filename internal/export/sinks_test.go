package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/ducats/internal/apperrors"
)

func TestDirSinkWritesExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	o := newTestOrchestrator(t)

	a, err := o.Start(context.Background(), "trip", NewDirSink(dir))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := waitResult(t, a)

	path := filepath.Join(dir, "Trip.csv")
	if res.State != Completed || res.Completion.Destination != path {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Message != "Saved Trip.csv to "+path {
		t.Errorf("Message = %q", res.Message)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	if string(got) != tripCSV {
		t.Errorf("file contents = %q, want %q", got, tripCSV)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the export in %s, found %d entries", dir, len(entries))
	}
}

func TestDirSinkFailure(t *testing.T) {
	// A regular file where the directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	o := newTestOrchestrator(t)

	a, err := o.Start(context.Background(), "trip", NewDirSink(blocker))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := waitResult(t, a)
	if res.State != Failed || !errors.Is(res.Err, apperrors.ErrSink) {
		t.Errorf("unexpected result: %+v", res)
	}
	if o.State("trip") != Idle {
		t.Errorf("state = %v, want idle", o.State("trip"))
	}
}

func TestDirSinkRejectsPathFileName(t *testing.T) {
	_, err := NewDirSink(t.TempDir()).Activate(context.Background(), Payload{FileName: "../x.csv"})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestPendingSink(t *testing.T) {
	o := newTestOrchestrator(t)
	sink := NewPendingSink(KindFile)

	a, err := o.Start(context.Background(), "trip", sink)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p, err := sink.Pending(a.ID())
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if string(p.Data) != tripCSV || p.FileName != "Trip.csv" {
		t.Errorf("unexpected payload: %+v", p)
	}

	if err := sink.Resolve(a.ID(), Saved("~/Documents/Trip.csv")); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	res := waitResult(t, a)
	if res.Completion.Destination != "~/Documents/Trip.csv" {
		t.Errorf("unexpected result: %+v", res)
	}

	if err := sink.Resolve(a.ID(), Cancelled()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second Resolve: expected NotFound, got %v", err)
	}
	if _, err := sink.Pending(a.ID()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Pending after Resolve: expected NotFound, got %v", err)
	}
}

func TestPendingSinkDroppedOnShutdown(t *testing.T) {
	o := NewOrchestrator(fakeSnapshots{"trip": tripProject()})
	sink := NewPendingSink(KindMail)

	a, err := o.Start(context.Background(), "trip", sink)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	o.Close()

	if res := a.Result(); res.Completion.Outcome != OutcomeCancelled {
		t.Errorf("outcome = %q, want cancelled", res.Completion.Outcome)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := sink.Pending(a.ID()); errors.Is(err, apperrors.ErrNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("parked payload was not dropped")
		}
		time.Sleep(time.Millisecond)
	}
}

type recordingMailer struct {
	mu   sync.Mutex
	from string
	to   []string
	msg  []byte
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, from string, to []string, msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.from, m.to, m.msg = from, to, msg
	return m.err
}

func TestMailSink(t *testing.T) {
	mailer := &recordingMailer{}
	o := newTestOrchestrator(t, WithRecipients([]string{"me@example.com", "you@example.com"}))

	a, err := o.Start(context.Background(), "trip", NewMailSink(mailer, "ducats@example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := waitResult(t, a)
	if res.State != Completed || res.Message != "Sent Trip.csv by email" {
		t.Fatalf("unexpected result: %+v", res)
	}

	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	if mailer.from != "ducats@example.com" || len(mailer.to) != 2 {
		t.Errorf("envelope = %s -> %v", mailer.from, mailer.to)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(mailer.msg))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}
	if got := msg.Header.Get("Subject"); got != "Expenses: Trip" {
		t.Errorf("Subject = %q", got)
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("Content-Type = %q, %v", mediaType, err)
	}
	mr := multipart.NewReader(msg.Body, params["boundary"])

	body, err := mr.NextPart()
	if err != nil {
		t.Fatalf("missing body part: %v", err)
	}
	text, _ := io.ReadAll(body)
	if !strings.Contains(string(text), "Attached is the expense ledger for Trip.") {
		t.Errorf("body = %q", text)
	}

	attachment, err := mr.NextPart()
	if err != nil {
		t.Fatalf("missing attachment: %v", err)
	}
	if attachment.FileName() != "Trip.csv" {
		t.Errorf("attachment name = %q", attachment.FileName())
	}
	if ct := attachment.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("attachment type = %q", ct)
	}
	encoded, _ := io.ReadAll(attachment)
	decoded, err := base64.StdEncoding.DecodeString(strings.NewReplacer("\r", "", "\n", "").Replace(string(encoded)))
	if err != nil {
		t.Fatalf("failed to decode attachment: %v", err)
	}
	if string(decoded) != tripCSV {
		t.Errorf("attachment = %q, want %q", decoded, tripCSV)
	}
}

func TestMailSinkFailures(t *testing.T) {
	t.Run("no recipients", func(t *testing.T) {
		o := newTestOrchestrator(t)
		_, err := o.Start(context.Background(), "trip", NewMailSink(&recordingMailer{}, "a@example.com"))
		if !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("expected ValidationError, got %v", err)
		}
		if o.State("trip") != Idle {
			t.Errorf("state = %v, want idle", o.State("trip"))
		}
	})

	t.Run("delivery error", func(t *testing.T) {
		o := newTestOrchestrator(t, WithRecipients([]string{"me@example.com"}))
		mailer := &recordingMailer{err: errors.New("relay refused")}

		a, err := o.Start(context.Background(), "trip", NewMailSink(mailer, "a@example.com"))
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		res := waitResult(t, a)
		if res.State != Failed || res.Message != "Export failed: relay refused" {
			t.Errorf("unexpected result: %+v", res)
		}
	})
}

func TestWrapBase64(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 200)
	lines := strings.Split(strings.TrimSuffix(string(wrapBase64(data)), "\r\n"), "\r\n")
	for i, line := range lines {
		if len(line) > 76 {
			t.Errorf("line %d has %d columns", i, len(line))
		}
	}
}
