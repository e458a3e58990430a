package telemetry

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportsSubject is the bus subject crash and usage reports are published on.
const ReportsSubject = "cureports.reports"

const publishTimeout = 2 * time.Second

// Publisher is the subset of the event bus the reporter needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// ConsentFromEnv reports whether the user opted in to reporting via the named variable.
// Reporting is off unless the variable holds a truthy value.
func ConsentFromEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "t", "true", "y", "yes":
		return true
	default:
		return false
	}
}

// Report is a single usage or crash report.
type Report struct {
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Tags      []string          `json:"tags"`
	Name      string            `json:"name"`
	SessionID string            `json:"session_id"`
	ClientID  string            `json:"client_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Context   map[string]string `json:"context,omitempty"`
}

// Reporter publishes reports on a best-effort basis. A Reporter without consent or without
// a publisher drops everything.
type Reporter struct {
	name      string
	consent   bool
	clientID  string
	sessionID string
	bus       Publisher
	logger    *log.Logger
	now       func() time.Time
}

// NewReporter builds a Reporter. bus may be nil.
func NewReporter(name string, consent bool, bus Publisher, logger *log.Logger) *Reporter {
	return &Reporter{
		name:      name,
		consent:   consent,
		clientID:  os.Getenv("CUREPORTS_REPORTING_SENDER"),
		sessionID: uuid.NewString(),
		bus:       bus,
		logger:    logger,
		now:       time.Now,
	}
}

// Enabled reports whether reports will actually leave the process.
func (r *Reporter) Enabled() bool {
	return r != nil && r.consent && r.bus != nil
}

// SessionID identifies the process run in every report.
func (r *Reporter) SessionID() string {
	if r == nil {
		return ""
	}
	return r.sessionID
}

// SystemReport publishes basic host and runtime information.
func (r *Reporter) SystemReport(ctx context.Context, version string) {
	content := fmt.Sprintf("os=%s arch=%s go=%s version=%s", runtime.GOOS, runtime.GOARCH, runtime.Version(), version)
	r.publish(ctx, Report{
		Title:   "System information",
		Content: content,
		Tags:    []string{"type:system", "os:" + runtime.GOOS, "arch:" + runtime.GOARCH, "version:" + version},
	})
}

// ErrorReport publishes an error together with identifying context.
func (r *Reporter) ErrorReport(ctx context.Context, err error, fields map[string]string) {
	if err == nil {
		return
	}
	tags := []string{"type:error"}
	for k, v := range fields {
		tags = append(tags, k+":"+v)
	}
	r.publish(ctx, Report{
		Title:   "Error",
		Content: err.Error(),
		Tags:    tags,
		Context: fields,
	})
}

// PanicReport publishes a recovered panic value with the current stack.
func (r *Reporter) PanicReport(ctx context.Context, recovered any) {
	r.publish(ctx, Report{
		Title:   "Panic",
		Content: fmt.Sprintf("%v\n\n%s", recovered, debug.Stack()),
		Tags:    []string{"type:panic"},
	})
}

func (r *Reporter) publish(ctx context.Context, report Report) {
	if !r.Enabled() {
		return
	}
	report.Name = r.name
	report.SessionID = r.sessionID
	report.ClientID = r.clientID
	report.CreatedAt = r.now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := r.bus.Publish(ctx, ReportsSubject, report); err != nil && r.logger != nil {
		r.logger.Printf("DEBUG report %q not published: %v", report.Title, err)
	}
}
