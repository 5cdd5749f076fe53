package web

// UI relays session feedback to SSE clients. It never calls back into the
// session, so it is safe to hand to the session worker.
type UI struct {
	b *StatusBroadcaster
}

// NewUI creates a UI that publishes on b.
func NewUI(b *StatusBroadcaster) *UI {
	return &UI{b: b}
}

// UserMessage broadcasts text once. It is not logged through debug, whose
// output is already mirrored to the same clients.
func (u *UI) UserMessage(text string) {
	u.b.BroadcastMsg(text)
}

func (u *UI) ThumbnailUpdated(uri string) {
	u.b.Publish(StatusEvent{Kind: KindThumbnail, Msg: uri})
}

func (u *UI) RecordingIndicator(recording bool) {
	u.b.Publish(StatusEvent{Kind: KindRecording, Msg: onOff(recording)})
}

func (u *UI) TorchIndicator(on bool) {
	u.b.Publish(StatusEvent{Kind: KindTorch, Msg: onOff(on)})
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
