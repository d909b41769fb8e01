package messages

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// openAPIJSON is the embedded document converted once to JSON.
var openAPIJSON = sync.OnceValues(func() ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	return json.Marshal(doc)
})

// OpenAPI returns the OpenAPI 3 description of /api/v1 as JSON.
func OpenAPI() ([]byte, error) { return openAPIJSON() }

func serveOpenAPIYAML(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", openAPIYAML)
}

func serveOpenAPIJSON(c *gin.Context) {
	doc, err := OpenAPI()
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}
