package search

import (
	"encoding/json"
	"fmt"
	"net/http"
	"protocolo/bizerror"
	"protocolo/client/es"
	"protocolo/common"
	"protocolo/domain/protocol"
	"protocolo/indices"
	"protocolo/session"

	"github.com/gin-gonic/gin"
)

var (
	SearchProtocolsFunc = SearchProtocols

	PathSearch = "/v1/search"
)

const maxSearchSize = 1000

type SearchQuery struct {
	Text       string   `form:"q"`
	ModuleType string   `form:"moduleType"`
	Stages     []string `form:"stage"`
	OpenOnly   bool     `form:"openOnly"`
	Size       int      `form:"size"`
}

// SearchProtocols runs a full text search over number, summary and citizen of the tenant protocols.
func SearchProtocols(q SearchQuery, s *session.Session) ([]protocol.Protocol, error) {
	filters := make([]es.H, 0, 4)
	filters = append(filters, es.H{"term": es.H{"tenantId.keyword": s.TenantID}})
	if q.ModuleType != "" {
		filters = append(filters, es.H{"term": es.H{"moduleType.keyword": q.ModuleType}})
	}
	if len(q.Stages) > 0 {
		filters = append(filters, es.H{"terms": es.H{"currentStage.keyword": q.Stages}})
	}
	if q.OpenOnly {
		filters = append(filters, es.H{"term": es.H{"concluded": false}})
	}

	root := es.H{"filter": filters}
	if q.Text != "" {
		root["must"] = []es.H{{"multi_match": es.H{"query": q.Text, "fields": []string{"number^3", "summary", "citizenRef"}, "operator": "AND"}}}
	}

	size := q.Size
	if size <= 0 || size > maxSearchSize {
		size = maxSearchSize
	}
	sorts := []es.H{{"_score": es.H{"order": "desc"}}, {"priority": es.H{"order": "desc"}}, {"dueDate": es.H{"order": "asc"}}}

	r, err := es.SearchFunc(indices.ProtocolIndexName, es.H{"size": size, "query": es.H{"bool": root}, "sort": sorts}, s)
	if err != nil {
		return nil, bizerror.Internal(err)
	}
	protocols := make([]protocol.Protocol, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		doc := indices.ProtocolDocument{}
		if err := json.Unmarshal([]byte(hit.Source), &doc); err != nil {
			return nil, bizerror.Internal(fmt.Errorf("decode protocol document %s: %w", hit.Id, err))
		}
		protocols = append(protocols, doc.Protocol)
	}
	return protocols, nil
}

func RegisterSearchRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	r.Group(PathSearch, middleWares...).GET("", handleSearch)
}

func handleSearch(c *gin.Context) {
	q := SearchQuery{}
	if err := c.ShouldBindQuery(&q); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	protocols, err := SearchProtocolsFunc(q, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &common.PagedBody{List: protocols, Total: uint64(len(protocols))})
}
