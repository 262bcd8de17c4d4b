// Package editor hosts suggestion sessions for remote template editors
// connected over the websocket hub. Each connection gets one Host; each
// Host owns a Completer per field and runs them on its own loop.
package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/strongdm/paramref/internal/eventlog"
	"github.com/strongdm/paramref/internal/messages"
	"github.com/strongdm/paramref/internal/paramref"
	"github.com/strongdm/paramref/internal/suggest"
	"github.com/strongdm/paramref/internal/telemetry/otel"
)

// Sender delivers a JSON value to one websocket client.
type Sender interface {
	SendJSONToClient(clientID string, v any) error
}

// Options tunes the Completers a Host creates.
type Options struct {
	Debounce    time.Duration
	BlurGrace   time.Duration
	Instruments *otel.SuggestInstruments
}

// Host serves one editor connection.
type Host struct {
	clientID string
	send     Sender
	catalog  suggest.Catalog
	checker  suggest.Checker

	loop   *suggest.Loop
	ctx    context.Context
	cancel context.CancelFunc

	fields map[string]*suggest.Completer
	// echo is set after an accept so the client's report of the text we
	// just wrote does not reopen the token.
	echo map[string]bool

	subject, body string
	checkGen      uint64
	lastCheck     paramref.ValidationResult
}

// NewHost starts a Host for clientID. It runs until ctx is cancelled or
// Close is called.
func NewHost(ctx context.Context, clientID string, send Sender, catalog suggest.Catalog, opts Options) *Host {
	ctx, cancel := context.WithCancel(ctx)
	h := &Host{
		clientID: clientID,
		send:     send,
		catalog:  catalog,
		checker:  suggest.Checker{Validator: catalog, Instruments: opts.Instruments},
		loop:     suggest.NewLoop(),
		ctx:      ctx,
		cancel:   cancel,
		fields:   make(map[string]*suggest.Completer, 2),
		echo:     make(map[string]bool, 2),
	}
	for _, field := range []string{messages.FieldSubject, messages.FieldBody} {
		h.fields[field] = suggest.New(h.loop, catalog, suggest.Options{
			Context:     ctx,
			Debounce:    opts.Debounce,
			BlurGrace:   opts.BlurGrace,
			Instruments: opts.Instruments,
			Source:      "editor",
			OnChange:    func(s suggest.Snapshot) { h.sendSuggestions(field, s, "") },
		})
	}
	go func() {
		_ = h.loop.Run(ctx)
	}()
	return h
}

// ClientID returns the websocket client this Host answers.
func (h *Host) ClientID() string { return h.clientID }

// Validation returns the most recent advisory check. Call it through the
// loop, e.g. from a test via Do.
func (h *Host) Validation() paramref.ValidationResult { return h.lastCheck }

// Do runs f on the Host loop and waits for it.
func (h *Host) Do(ctx context.Context, f func()) error {
	return h.loop.Call(ctx, f)
}

// Handle queues env for processing on the Host loop.
func (h *Host) Handle(env *messages.Envelope) {
	h.loop.Post(func() {
		if err := h.dispatch(env); err != nil {
			eventlog.Emit("editor.message.rejected", map[string]any{
				"client": h.clientID,
				"type":   env.Type,
				"error":  err,
			})
			h.reply(messages.TypeError, env.RequestID, messages.ErrorPayload{Message: err.Error()})
		}
	})
}

// Close stops every Completer and the loop. It returns at once when the
// loop already exited because the Host's context was cancelled.
func (h *Host) Close() {
	closeFields := func() {
		for _, c := range h.fields {
			c.Close()
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.loop.Call(ctx, closeFields); errors.Is(err, suggest.ErrStopped) {
		closeFields()
	}
	h.cancel()
	h.loop.Close()
}

func (h *Host) dispatch(env *messages.Envelope) error {
	switch env.Type {
	case messages.TypeClientHello:
		var p messages.ClientHelloPayload
		_ = messages.UnmarshalPayload(env, &p)
		eventlog.Emit("editor.hello", map[string]any{"client": h.clientID, "platform": p.Platform, "version": p.Version})
		return nil

	case messages.TypeEditorChange:
		var p messages.ChangePayload
		if err := decodeField(env, &p, func() string { return p.Field }); err != nil {
			return err
		}
		h.change(p.Field, p.Text, p.Cursor, env.RequestID)
		return nil

	case messages.TypeEditorKey:
		var p messages.KeyPayload
		if err := decodeField(env, &p, func() string { return p.Field }); err != nil {
			return err
		}
		h.key(p.Field, p.Key, env.RequestID)
		return nil

	case messages.TypeEditorHover:
		var p messages.IndexPayload
		if err := decodeField(env, &p, func() string { return p.Field }); err != nil {
			return err
		}
		c := h.fields[p.Field]
		if c.Hover(p.Index) {
			h.sendSuggestions(p.Field, c.Snapshot(), env.RequestID)
		}
		return nil

	case messages.TypeEditorSelect:
		var p messages.IndexPayload
		if err := decodeField(env, &p, func() string { return p.Field }); err != nil {
			return err
		}
		c := h.fields[p.Field]
		if rep, ok := c.Select(p.Index); ok {
			h.accepted(p.Field, rep, env.RequestID)
		}
		return nil

	case messages.TypeEditorBlur, messages.TypeEditorFocus:
		var p messages.FieldPayload
		if len(env.Payload) > 0 {
			if err := messages.UnmarshalPayload(env, &p); err != nil {
				return err
			}
		}
		for field, c := range h.fields {
			if p.Field != "" && p.Field != field {
				continue
			}
			if env.Type == messages.TypeEditorBlur {
				c.Blur()
			} else {
				c.Focus()
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported message type %q", env.Type)
}

func decodeField[T any](env *messages.Envelope, dst *T, field func() string) error {
	if err := messages.UnmarshalPayload(env, dst); err != nil {
		return err
	}
	if !messages.ValidField(field()) {
		return fmt.Errorf("unknown field %q", field())
	}
	return nil
}

func (h *Host) change(field, text string, cursor int, requestID string) {
	c := h.fields[field]
	echo := h.echo[field]
	h.echo[field] = false
	if text == c.Text() && (cursor == c.Cursor() || echo) {
		return
	}

	c.Update(text, cursor)
	h.sendSuggestions(field, c.Snapshot(), requestID)
	h.setText(field, text)
}

func (h *Host) key(field, name, requestID string) {
	c := h.fields[field]
	res := c.HandleKey(suggest.ParseKey(name))
	h.reply(messages.TypeEditorKeyResult, requestID, messages.KeyResultPayload{
		Field:   field,
		Key:     name,
		Handled: res.Handled,
	})
	if res.Accepted {
		h.accepted(field, res.Replacement, requestID)
		return
	}
	if res.Handled {
		h.sendSuggestions(field, c.Snapshot(), requestID)
	}
}

// accepted sends the new text now and the caret on the next loop turn, after
// the client has applied the text.
func (h *Host) accepted(field string, rep paramref.Replacement, requestID string) {
	h.echo[field] = true
	h.reply(messages.TypeEditorReplace, requestID, messages.ReplacePayload{Field: field, Text: rep.Text})
	h.sendSuggestions(field, h.fields[field].Snapshot(), requestID)
	h.loop.Post(func() {
		h.reply(messages.TypeEditorCursor, requestID, messages.CursorPayload{Field: field, Cursor: rep.Cursor})
	})
	h.setText(field, rep.Text)
}

// setText records the field and re-runs the advisory check when the
// combined template changed. Only the newest check is reported.
func (h *Host) setText(field, text string) {
	switch field {
	case messages.FieldSubject:
		if h.subject == text && h.checkGen > 0 {
			return
		}
		h.subject = text
	case messages.FieldBody:
		if h.body == text && h.checkGen > 0 {
			return
		}
		h.body = text
	}

	h.checkGen++
	gen := h.checkGen
	subject, body := h.subject, h.body
	h.loop.Go(func() {
		res := h.checker.Check(h.ctx, subject, body)
		h.loop.Post(func() {
			if gen != h.checkGen {
				return
			}
			h.lastCheck = res
			h.reply(messages.TypeEditorValidation, "", messages.ValidationPayload{
				IsValid:      res.Valid,
				InvalidNames: res.InvalidNames,
			})
		})
	})
}

func (h *Host) sendSuggestions(field string, s suggest.Snapshot, requestID string) {
	p := messages.SuggestionsPayload{
		Field:         field,
		Open:          s.Open,
		Candidates:    make([]messages.Candidate, 0, len(s.Candidates)),
		SelectedIndex: s.Selected,
	}
	if s.Span != nil {
		p.StartOffset = s.Span.Start
		p.SearchText = s.Span.Search
	}
	for _, c := range s.Candidates {
		p.Candidates = append(p.Candidates, messages.Candidate{
			Value:       c.Name,
			Label:       c.Name,
			Description: c.Description,
			DataType:    string(c.DataType),
		})
	}
	h.reply(messages.TypeEditorSuggestions, requestID, p)
}

func (h *Host) reply(typ, requestID string, payload any) {
	env, err := messages.WrapPayloadWithRequestID(h.clientID, typ, requestID, payload)
	if err != nil {
		eventlog.Emit("editor.send.error", map[string]any{"client": h.clientID, "type": typ, "error": err})
		return
	}
	if err := h.send.SendJSONToClient(h.clientID, env); err != nil {
		eventlog.Emit("editor.send.error", map[string]any{"client": h.clientID, "type": typ, "error": err})
	}
}
