// FilePath: api/resources/resources.go
package resources

import (
	"context"
	"net/http"

	"github.com/itsatony/etbridge/internal/bridge"
	"github.com/itsatony/etbridge/internal/models"
	"github.com/itsatony/etbridge/internal/submission"
)

// IssueLister lists open repair issues
type IssueLister interface {
	List(ctx context.Context) ([]models.Issue, error)
	ListEntry(ctx context.Context, entryID string) ([]models.Issue, error)
}

// MeterReadingSender performs the send_meter_reading action
type MeterReadingSender interface {
	SendMeterReading(ctx context.Context, req submission.Request) (*submission.Result, error)
}

// Resources holds all HTTP resource handlers
type Resources struct {
	Entries     *EntryHandlers
	Issues      *IssueHandlers
	Services    *ServiceHandlers
	HealthCheck func(w http.ResponseWriter, r *http.Request)
	Swagger     func(w http.ResponseWriter, r *http.Request)
}

// NewResources creates a new Resources instance. locale is used for error
// messages unless the request asks for another supported language.
func NewResources(svc *bridge.Service, sender MeterReadingSender, issues IssueLister, locale string) *Resources {
	return &Resources{
		Entries:  &EntryHandlers{bridge: svc, locale: locale},
		Issues:   &IssueHandlers{issues: issues, locale: locale},
		Services: &ServiceHandlers{sender: sender, locale: locale},
		Swagger:  serveSwagger,
	}
}

// SetHealthCheck sets the health check handler
func (r *Resources) SetHealthCheck(h func(w http.ResponseWriter, r *http.Request)) {
	r.HealthCheck = h
}
