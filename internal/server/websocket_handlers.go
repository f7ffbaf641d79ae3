package server

import (
	"context"
	"encoding/json"
	"log"

	"fusionforge/internal/events"
	"fusionforge/internal/models"
	"fusionforge/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// EngagementStreamGate runs before the WebSocket upgrade: it resolves the
// optional identity, checks read access to the post, and stashes what the
// connection handler needs in locals. Auth uses the token query param since
// browsers cannot set headers on WebSocket requests.
func (s *Server) EngagementStreamGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		postID, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		userID, _ := s.optionalUserID(c)

		// Privacy gating happens here, once, at connect time.
		if _, err := s.postService.GetFusionPost(c.Context(), postID, userID); err != nil {
			return models.RespondWithAppError(c, err)
		}

		c.Locals("postID", postID)
		return c.Next()
	}
}

// EngagementStreamHandler streams counter snapshots for one post. Each
// aggregator apply for the post pushes a counters_updated event; the
// connection receives the current snapshot immediately on connect so late
// joiners do not wait for the next engagement action.
func (s *Server) EngagementStreamHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		observability.WebSocketConnectionsTotal.Inc()
		defer observability.WebSocketConnectionsTotal.Dec()

		postID := conn.Locals("postID").(uint)

		ch, cancel := s.bus.Subscribe(events.EntityFusionPost, postID)
		defer cancel()

		ctx := context.Background()
		if snap, err := s.postRepo.GetCounters(ctx, postID); err == nil {
			s.writeCounterEvent(conn, events.Event{
				Entity:   events.EntityFusionPost,
				EntityID: postID,
				Type:     events.CountersUpdated,
				Counters: &events.Counters{
					Likes:    snap.LikesCount,
					Forks:    snap.ForkCount,
					Views:    snap.ViewsCount,
					Comments: snap.CommentCount,
					Shares:   snap.SharesCount,
				},
			})
		}

		// The stream is one-way; the read pump only detects the peer going away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case ev := <-ch:
				if ev.Type != events.CountersUpdated {
					continue
				}
				if !s.writeCounterEvent(conn, ev) {
					return
				}
			}
		}
	})
}

func (s *Server) writeCounterEvent(conn *websocket.Conn, ev events.Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("failed to marshal counter event: %v", err)
		return true
	}
	return conn.WriteMessage(websocket.TextMessage, payload) == nil
}
