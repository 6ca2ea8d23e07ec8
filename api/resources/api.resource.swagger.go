// FilePath: api/resources/api.resource.swagger.go
package resources

import (
	"net/http"

	"github.com/itsatony/etbridge/api/docs"
	"github.com/itsatony/etbridge/internal/errors"
	"github.com/swaggo/swag"
	nuts "github.com/vaudience/go-nuts"
)

// serveSwagger writes the registered API document
func serveSwagger(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		respondWithError(w, r, errors.DefaultLocale, errors.NewInternalError("api document unavailable", err).WithRequestID(nuts.NID("req", 12)))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
