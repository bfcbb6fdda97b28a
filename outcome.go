// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

// Admission is the result of a single attempt to place a record in the
// producer's outbound queue.
type Admission int

const (
	// Enqueued indicates the record was accepted for asynchronous delivery.
	// The final result is reported through delivery feedback.
	Enqueued Admission = iota

	// QueueFull indicates the outbound queue is at capacity. The attempt
	// may be retried once the queue makes progress.
	QueueFull

	// Rejected indicates the record can never be enqueued as given. It is
	// dropped without retry.
	Rejected
)

// String returns the string representation of the Admission.
func (a Admission) String() string {
	switch a {
	case Enqueued:
		return "Enqueued"
	case QueueFull:
		return "QueueFull"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// retryable reports whether another attempt may succeed.
func (a Admission) retryable() bool {
	return a == QueueFull
}

// admission pairs the Admission with the reason for a non-Enqueued result.
type admission struct {
	Admission
	err error
}
