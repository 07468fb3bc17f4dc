package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"vocalscript/audio"
	"vocalscript/log"
	"vocalscript/recorder"
	"vocalscript/ui"
)

// Fragments are a timeslice of compressed audio; 8 MiB leaves ample room.
const maxFrame = 8 << 20

type session struct {
	id     string
	conn   *websocket.Conn
	logger zerolog.Logger

	ctx context.Context

	mu    sync.Mutex
	state ui.State
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.cfg.AllowedOrigins),
	})
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("websocket accept")
		return
	}
	conn.SetReadLimit(maxFrame)

	id := uuid.NewString()
	sess := &session{
		id:     id,
		conn:   conn,
		logger: hlog.FromRequest(r).With().Str("conn", id).Logger(),
	}

	s.sessions.Add(1)
	defer s.sessions.Add(-1)

	err = sess.run(r.Context(), s, requestOrigin(r))
	switch status := websocket.CloseStatus(err); {
	case err == nil, status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway:
		sess.logger.Info().Msg("session closed")
		conn.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled):
		sess.logger.Info().Msg("session cancelled")
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	default:
		sess.logger.Warn().Err(err).Msg("session failed")
		conn.Close(websocket.StatusInternalError, "")
	}
}

func (sess *session) send(m message) error {
	return wsjson.Write(sess.ctx, sess.conn, m)
}

func (sess *session) run(ctx context.Context, srv *Server, origin audio.Origin) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess.ctx = ctx

	if err := sess.send(message{Type: msgHello, Candidates: srv.recCfg.Candidates}); err != nil {
		return err
	}
	var hello message
	if err := wsjson.Read(ctx, sess.conn, &hello); err != nil {
		return err
	}
	if hello.Type != msgHello {
		return fmt.Errorf("expected %s, got %q", msgHello, hello.Type)
	}

	bctx := newBrowserContext(origin, hello, sess.send)
	defer bctx.Close()

	ctrl := recorder.New(bctx, srv.client, sess, srv.recCfg)
	sess.state = ui.New(ctrl.Probe())
	log.SessionStart("web", origin.String(), srv.name)
	sess.logger.Info().
		Str("origin", origin.String()).
		Strs("supported", hello.Supported).
		Str("encoding", ctrl.Probe().Encoding).
		Msg("session started")
	sess.update(nil)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		ctrl.Run(ctx)
	}()
	defer func() {
		cancel()
		<-runDone
		log.SessionEnd(ctrl.Recordings())
	}()

	for {
		typ, data, err := sess.conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ == websocket.MessageBinary {
			bctx.fragment(data)
			continue
		}

		var m message
		if err := json.Unmarshal(data, &m); err != nil {
			sess.logger.Warn().Err(err).Msg("malformed message")
			continue
		}
		switch m.Type {
		case msgOpened:
			bctx.opened()
		case msgDenied:
			bctx.denied(m.Error)
		case msgStopped:
			bctx.stopped()
		case msgToggle:
			// Toggle waits on the controller, which may itself be waiting
			// for this loop to deliver the permission answer.
			go sess.toggle(ctrl)
		case msgClear:
			sess.update(func(st *ui.State) { st.Clear() })
		default:
			sess.logger.Debug().Str("type", m.Type).Msg("unknown message")
		}
	}
}

func (sess *session) toggle(ctrl *recorder.Controller) {
	err := ctrl.Toggle()
	switch {
	case err == nil:
	case errors.Is(err, recorder.ErrBusy), errors.Is(err, recorder.ErrClosed):
		sess.logger.Debug().Err(err).Msg("toggle ignored")
	default:
		// already reported to the page as a Failed event
		sess.logger.Debug().Err(err).Msg("toggle")
	}
}

// Publish applies a controller event and pushes the new state to the page.
func (sess *session) Publish(e recorder.Event) {
	sess.update(func(st *ui.State) { st.Apply(e) })
}

// update holds mu across the write so frames leave in the order the state
// changed.
func (sess *session) update(fn func(*ui.State)) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if fn != nil {
		fn(&sess.state)
	}
	if err := sess.send(message{Type: msgState, State: newView(sess.state)}); err != nil {
		sess.logger.Debug().Err(err).Msg("state not delivered")
	}
}

// requestOrigin is the page origin as the browser sees it, including
// behind a TLS-terminating proxy.
func requestOrigin(r *http.Request) audio.Origin {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return audio.Origin{Scheme: scheme, Host: r.Host}
}

// originPatterns turns configured origins into the host patterns the
// websocket handshake matches against. Nil allows same-host pages only.
func originPatterns(origins []string) []string {
	var patterns []string
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
