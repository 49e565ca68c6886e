package strand

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	statCommands     = metrics.NewCounter("strand_commands_enqueued_total")
	statReplies      = metrics.NewCounter("strand_replies_delivered_total")
	statPushMessages = metrics.NewCounter("strand_push_messages_total")
	statDisconnects  = metrics.NewCounter("strand_disconnects_total")
	statBytesRead    = metrics.NewCounter("strand_bytes_read_total")
	statBytesWritten = metrics.NewCounter("strand_bytes_written_total")
)

// WriteStats writes all connection counters to w in Prometheus text format.
func WriteStats(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
