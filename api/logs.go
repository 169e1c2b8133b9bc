package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mypivxwallet/wallet_engine/api/respond"
)

var errNoJournal = errors.New("operational journal disabled")

func (s *Server) setupLogRoutes() {
	s.Router.GET("/logs/sync", s.syncLogs)
	s.Router.GET("/logs/err", s.errLogs)
}

// pagination reads page and limit, falling back to 1 and 20.
func pagination(c *gin.Context) (limit, offset int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	return limit, (page - 1) * limit
}

func (s *Server) syncLogs(c *gin.Context) {
	startTime := time.Now().UnixMilli()
	if s.journal == nil {
		c.JSON(http.StatusNotFound, respond.RespErr(errNoJournal, since(startTime), http.StatusNotFound))
		return
	}
	limit, offset := pagination(c)
	logs, err := s.journal.QuerySyncLogs(c.DefaultQuery("kind", "transparent"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, respond.RespErr(err, since(startTime), http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, respond.RespSuccess(logs, since(startTime)))
}

func (s *Server) errLogs(c *gin.Context) {
	startTime := time.Now().UnixMilli()
	if s.journal == nil {
		c.JSON(http.StatusNotFound, respond.RespErr(errNoJournal, since(startTime), http.StatusNotFound))
		return
	}
	limit, offset := pagination(c)
	logs, err := s.journal.QueryErrLogs(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, respond.RespErr(err, since(startTime), http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, respond.RespSuccess(logs, since(startTime)))
}
