package session

import (
	"fmt"
	"strings"

	"github.com/cwrk-planet/live-quiz/internal/broadcast"
	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// join attaches a player connection. New players enter as active at any
// point of an open session; known players get their connection rebound.
func (s *Session) join(t *tx, c Join) error {
	if c.Role != domain.RolePlayer || c.ParticipantID == t.st.hostID {
		return domain.Invalid(domain.CodeRoleMismatch, "only players can join", nil)
	}
	if c.Conn == nil {
		return domain.Invalid(domain.CodeInvalidMessage, "connection is required", nil)
	}

	p, ok := t.st.participants[c.ParticipantID]
	switch {
	case ok && p.Status == domain.StatusRemoved:
		return domain.Invalid(domain.CodeParticipantRemoved, "participant was removed by the host", nil)
	case !ok:
		name := strings.TrimSpace(c.DisplayName)
		if name == "" {
			name = fmt.Sprintf("Player %d", len(t.st.order))
		}
		p = &domain.Participant{
			ID:          c.ParticipantID,
			DisplayName: name,
			Role:        domain.RolePlayer,
			Status:      domain.StatusActive,
			JoinedAt:    t.now,
		}
		t.st.participants[p.ID] = p
		t.st.order = append(t.st.order, p.ID)
	}

	p.Connected = true
	p.LastHeartbeat = t.now
	t.st.conns[p.ID] = c.Conn.ID()
	t.attach(p.ID, c.Conn)
	if p.Status == domain.StatusActive {
		t.arm(presenceOf(p.ID), s.cfg.PresenceTimeout())
	}

	snap := s.snapshot(t.st)
	t.publish(broadcast.To(p.ID), domain.EventSessionState, snap)
	t.publish(broadcast.All(), domain.EventLobbyUpdated, domain.LobbyUpdated{Participants: t.st.players()})
	t.reply = snap
	return nil
}

func (s *Session) heartbeat(t *tx, c Heartbeat) error {
	p, ok := t.st.participants[c.ParticipantID]
	if !ok {
		return domain.Invalid(domain.CodeParticipantNotFound, "participant has not joined", nil)
	}
	p.LastHeartbeat = t.now
	if p.Role == domain.RolePlayer && p.Status == domain.StatusActive {
		t.arm(presenceOf(p.ID), s.cfg.PresenceTimeout())
	}
	return nil
}

// presenceTimeout marks a silent player disconnected. Score and submissions
// are kept; only the host and the player are told.
func (s *Session) presenceTimeout(t *tx, participantID string) {
	p, ok := t.st.participants[participantID]
	if !ok || p.Role != domain.RolePlayer || p.Status != domain.StatusActive {
		return
	}
	p.Status = domain.StatusDisconnected
	p.Connected = false
	delete(t.st.conns, p.ID)

	notice := domain.ParticipantRemoved{ParticipantID: p.ID, DisplayName: p.DisplayName, Reason: domain.ReasonTimeout}
	t.publish(broadcast.Host(), domain.EventParticipantRemoved, notice)
	t.publish(broadcast.To(p.ID), domain.EventParticipantRemoved, notice)
	t.evict(p.ID, broadcast.CloseHeartbeatTimeout, "heartbeat timeout")
}

// disconnect handles the loss of a connection. Losing the host pauses the
// session at once; a player keeps its status until the heartbeat timeout.
func (s *Session) disconnect(t *tx, c Disconnect) error {
	if c.Conn == nil {
		return nil
	}
	bound, ok := t.st.conns[c.ParticipantID]
	if !ok || bound != c.Conn.ID() {
		return nil
	}
	delete(t.st.conns, c.ParticipantID)
	t.st.participants[c.ParticipantID].Connected = false
	t.detach(c.ParticipantID, c.Conn)

	if c.ParticipantID == t.st.hostID {
		s.pause(t)
		return nil
	}
	if t.st.phase == domain.StateLobby {
		t.publish(broadcast.All(), domain.EventLobbyUpdated, domain.LobbyUpdated{Participants: t.st.players()})
	}
	return nil
}

func (s *Session) target(t *tx, id string) (*domain.Participant, error) {
	p, ok := t.st.participants[id]
	if !ok {
		return nil, domain.Invalid(domain.CodeParticipantNotFound, "participant not found", map[string]any{"participantId": id})
	}
	if p.Role != domain.RolePlayer {
		return nil, domain.Invalid(domain.CodeRoleMismatch, "the host cannot be moderated", nil)
	}
	return p, nil
}

func (s *Session) remove(t *tx, c RemoveParticipant) error {
	p, err := s.target(t, c.ParticipantID)
	if err != nil {
		return err
	}
	if p.Status == domain.StatusRemoved {
		return domain.Invalid(domain.CodeParticipantRemoved, "participant is already removed", map[string]any{"participantId": p.ID})
	}
	p.Status = domain.StatusRemoved
	p.Connected = false
	delete(t.st.conns, p.ID)
	t.cancel(presenceOf(p.ID))

	notice := domain.ParticipantRemoved{ParticipantID: p.ID, DisplayName: p.DisplayName, Reason: domain.ReasonRemovedByHost}
	t.publish(broadcast.Host(), domain.EventParticipantRemoved, notice)
	t.publish(broadcast.To(p.ID), domain.EventParticipantRemoved, notice)
	t.evict(p.ID, broadcast.CloseRemoved, "removed by host")
	return nil
}

func (s *Session) reinstate(t *tx, c ReinstateParticipant) error {
	p, err := s.target(t, c.ParticipantID)
	if err != nil {
		return err
	}
	if p.Status == domain.StatusActive {
		return domain.Invalid(domain.CodeWrongState, "participant is already active", map[string]any{"participantId": p.ID})
	}
	p.Status = domain.StatusActive
	p.LastHeartbeat = t.now
	t.arm(presenceOf(p.ID), s.cfg.PresenceTimeout())
	t.publish(broadcast.All(), domain.EventParticipantReinstated, domain.ParticipantReinstated{
		ParticipantID: p.ID,
		DisplayName:   p.DisplayName,
	})
	return nil
}
