package article

// Event names pushed on the status stream.
const (
	EventCreated             = "article:created"
	EventUpdated             = "article:updated"
	EventApproved            = "article:approved"
	EventRevised             = "article:revised"
	EventRejected            = "article:rejected"
	EventCancelled           = "article:cancelled"
	EventPaused              = "article:paused"
	EventRetry               = "article:retry"
	EventFailed              = "article:failed"
	EventTimeout             = "article:timeout"
	EventPublished           = "article:published"
	EventTranslationUpdated  = "translation:updated"
	EventImageGenerating     = "image:generating"
	EventImageReady          = "image:ready"
	EventImageFailed         = "image:failed"
	EventSupervisorEvaluated = "supervisor:evaluated"
	EventSupervisorFailed    = "supervisor:failed"
	EventPublishComplete     = "publish:complete"
	EventPublishFailed       = "publish:failed"
)

// TransitionEvent names the event emitted when an article enters status.
func TransitionEvent(status Status) string {
	switch status {
	case StatusPublished:
		return EventApproved
	case StatusRejected:
		return EventRejected
	case StatusCancelled:
		return EventCancelled
	case StatusPaused:
		return EventPaused
	case StatusFailed:
		return EventFailed
	case StatusTimeout:
		return EventTimeout
	default:
		return EventUpdated
	}
}
