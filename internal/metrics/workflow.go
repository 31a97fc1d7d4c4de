package metrics

import (
	"strconv"

	"github.com/DukeRupert/rentcheck/internal/domain"
)

// Transition records the outcome of a workflow action. A nil err counts as "ok".
func Transition(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = domain.ErrorCode(err)
	}
	TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

// Replay records an action acknowledged without a state change.
func Replay(action string) {
	TransitionsTotal.WithLabelValues(action, "replay").Inc()
}

func InspectionCreated(t domain.InspectionType, thirdParty bool) {
	InspectionsCreated.WithLabelValues(string(t), strconv.FormatBool(thirdParty)).Inc()
}

func DisputeRaised(d domain.Dispute) {
	DisputesRaised.WithLabelValues(string(d.Phase), string(d.DisputeType)).Inc()
}

func DisputeResolved(outcome domain.DisputeStatus) {
	DisputesResolved.WithLabelValues(string(outcome)).Inc()
}

// PhotoUpload records one stored photo. result is "stored", "rejected",
// "failed" or "rolled_back".
func PhotoUpload(result string) {
	PhotoUploads.WithLabelValues(result).Inc()
}

func Payment(status domain.PaymentStatus) {
	PaymentsTotal.WithLabelValues(string(status)).Inc()
}

func Notification(channel string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	NotificationsTotal.WithLabelValues(channel, status).Inc()
}
