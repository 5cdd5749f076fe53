package session

import "github.com/cjeanneret/CamGo/internal/logic/permission"

// Status is a read-only view of the session for outer surfaces.
type Status struct {
	Facing         string          `json:"facing"`
	Capabilities   string          `json:"capabilities"`
	Started        bool            `json:"started"`
	Bound          bool            `json:"bound"`
	Recording      string          `json:"recording"`
	RecordingID    string          `json:"recording_id,omitempty"`
	FlashAvailable bool            `json:"flash_available"`
	Torch          bool            `json:"torch"`
	LastPhoto      string          `json:"last_photo,omitempty"`
	Permissions    map[string]bool `json:"permissions"`
	Outstanding    []string        `json:"outstanding_permissions,omitempty"`
	Closed         bool            `json:"closed"`
}

// Snapshot returns the status as of the last processed task.
func (m *Manager) Snapshot() Status {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	s := m.snap
	s.Permissions = make(map[string]bool, len(m.snap.Permissions))
	for k, v := range m.snap.Permissions {
		s.Permissions[k] = v
	}
	s.Outstanding = append([]string(nil), m.snap.Outstanding...)
	return s
}

// publish refreshes the snapshot. Worker only.
func (m *Manager) publish() {
	s := Status{
		Facing:       m.facing.String(),
		Capabilities: m.opts.Capabilities.String(),
		Started:      m.started,
		Bound:        m.cam != nil,
		Recording:    m.rec.State().String(),
		LastPhoto:    m.lastPhoto,
		Permissions:  make(map[string]bool, len(permission.Precedence)),
		Closed:       m.closing,
	}
	if h := m.rec.Handle(); h != nil {
		s.RecordingID = h.ID()
	}
	if m.cam != nil {
		s.FlashAvailable = m.cam.FlashAvailable()
		s.Torch = m.cam.TorchEnabled()
	}
	for k, granted := range m.gate.Snapshot() {
		s.Permissions[k.String()] = granted
	}
	for _, k := range m.gate.Outstanding() {
		s.Outstanding = append(s.Outstanding, k.String())
	}

	m.snapMu.Lock()
	m.snap = s
	m.snapMu.Unlock()
}
