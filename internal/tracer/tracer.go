package tracer

import (
	"github.com/forum-rewards/rewarder/internal/version"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/mocktracer"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const serviceName = "forum-rewarder"

// StartTracer initializes the DataDog tracer, tagging every span with the run id.
// If enabled is false, it starts a mock tracer instead so spans stay in memory.
// The returned func stops whichever tracer was started.
func StartTracer(enabled bool, runId string) func() {
	if !enabled {
		mt := mocktracer.Start()
		return mt.Stop
	}
	ddTracer.Start(
		ddTracer.WithService(serviceName),
		ddTracer.WithServiceVersion(version.GetVersion()),
		ddTracer.WithGlobalTag("run_id", runId),
		ddTracer.WithDebugMode(false),
		ddTracer.WithLogStartup(false),
	)
	return ddTracer.Stop
}
