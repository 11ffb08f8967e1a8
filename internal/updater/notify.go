package updater

import "github.com/drydock/drydock/internal/notify"

// event builds a notify.Event; empty fields are omitted by the
// providers that only ever read populated ones.
func (u *Updater) event(t notify.EventType, containerName, oldImage, newImage, oldDigest, newDigest string) notify.Event {
	return notify.Event{
		Type:          t,
		ContainerName: containerName,
		OldImage:      oldImage,
		NewImage:      newImage,
		OldDigest:     oldDigest,
		NewDigest:     newDigest,
		Timestamp:     u.clock.Now(),
	}
}
