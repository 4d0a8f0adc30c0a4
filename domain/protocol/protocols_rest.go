package protocol

import (
	"errors"
	"net/http"
	"protocolo/bizerror"
	"protocolo/common"
	"protocolo/session"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathProtocols = "/v1/protocols"
	PathDashboard = "/v1/dashboard"
)

func RegisterProtocolsRestAPI(r *gin.Engine, m ProtocolManagerTraits, middleWares ...gin.HandlerFunc) {
	h := &protocolsHandler{manager: m}

	g := r.Group(PathProtocols, middleWares...)
	g.POST("", h.handleCreate)
	g.GET("", h.handleQuery)
	g.GET(":id", h.handleDetail)
	g.GET(":id/history", h.handleHistory)
	g.POST(":id/transitions", h.handleTransition)
	g.POST(":id/escalations", h.handleRequestUpdate)
	g.GET(":id/staleness", h.handleStaleness)
	g.GET(":id/sla", h.handleSLAStatus)
	g.POST(":id/comments", h.handleComment)
	g.PUT(":id/priority", h.handleChangePriority)
	g.PUT(":id/assignee", h.handleAssign)
	g.POST(":id/reopen", h.handleReopen)

	r.Group(PathDashboard, middleWares...).GET("", h.handleDashboard)
}

type protocolsHandler struct {
	manager ProtocolManagerTraits
}

func (h *protocolsHandler) handleCreate(c *gin.Context) {
	creation := ProtocolCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	detail, err := h.manager.Create(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *protocolsHandler) handleQuery(c *gin.Context) {
	query := ProtocolQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	items, err := h.manager.Query(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &common.PagedBody{List: items, Total: uint64(len(items))})
}

func (h *protocolsHandler) handleDetail(c *gin.Context) {
	detail, err := h.manager.Detail(protocolID(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *protocolsHandler) handleHistory(c *gin.Context) {
	history, err := h.manager.History(protocolID(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, history)
}

func (h *protocolsHandler) handleTransition(c *gin.Context) {
	id := protocolID(c)
	req := TransitionRequest{}
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	detail, err := h.manager.Transition(id, &req, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *protocolsHandler) handleRequestUpdate(c *gin.Context) {
	id := protocolID(c)
	req := EscalationRequest{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
	}
	entry, err := h.manager.RequestUpdate(id, &req, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *protocolsHandler) handleStaleness(c *gin.Context) {
	staleness, err := h.manager.Staleness(protocolID(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, staleness)
}

func (h *protocolsHandler) handleSLAStatus(c *gin.Context) {
	id := protocolID(c)
	var now *time.Time
	if v := c.Query("now"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			panic(&bizerror.ErrBadParam{Cause: errors.New("invalid now '" + v + "', RFC3339 expected")})
		}
		now = &t
	}
	report, err := h.manager.SLAStatus(id, now, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, report)
}

func (h *protocolsHandler) handleComment(c *gin.Context) {
	id := protocolID(c)
	req := CommentRequest{}
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	entry, err := h.manager.Comment(id, &req, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *protocolsHandler) handleChangePriority(c *gin.Context) {
	id := protocolID(c)
	req := PriorityRequest{}
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	p, err := h.manager.ChangePriority(id, req.Priority, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, p)
}

func (h *protocolsHandler) handleAssign(c *gin.Context) {
	id := protocolID(c)
	req := AssignRequest{}
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	p, err := h.manager.Assign(id, req.AssignedUserRef, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, p)
}

func (h *protocolsHandler) handleReopen(c *gin.Context) {
	id := protocolID(c)
	req := ReopenRequest{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
	}
	detail, err := h.manager.Reopen(id, &req, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *protocolsHandler) handleDashboard(c *gin.Context) {
	d, err := h.manager.Dashboard(c.Query("moduleType"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, d)
}

func protocolID(c *gin.Context) types.ID {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: errors.New("invalid id '" + c.Param("id") + "'")})
	}
	return id
}
