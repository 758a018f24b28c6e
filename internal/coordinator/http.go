package coordinator

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Response is the envelope for operator endpoints.
type Response struct {
	HttpStatus       int    `json:"httpStatus"`
	Explanation      string `json:"explanation"`
	ErrorExplanation string `json:"errorExplanation"`
	Error            bool   `json:"error"`
	Success          bool   `json:"success"`
	Data             any    `json:"data"`
}

func (c *Coordinator) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ws", c.hub.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.cfg.Registry, promhttp.HandlerOpts{})))
	router.GET("/healthz", c.health)
	router.GET("/status", c.status)

	control := router.Group("/")
	{
		control.POST("next", c.next)
		control.POST("play/:module", c.playModule)
	}
	return router
}

func (c *Coordinator) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, &Response{
		HttpStatus:  http.StatusOK,
		Explanation: "coordinator is healthy",
		Success:     true,
	})
}

// status renders Status; ?format=yaml or ?format=dot select other encodings.
func (c *Coordinator) status(ctx *gin.Context) {
	data, ctype, err := c.Status().Export(ctx.DefaultQuery("format", "json"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, &Response{
			HttpStatus:       http.StatusBadRequest,
			Explanation:      "unsupported status format",
			ErrorExplanation: err.Error(),
			Error:            true,
		})
		return
	}
	ctx.Data(http.StatusOK, ctype, data)
}

func (c *Coordinator) next(ctx *gin.Context) {
	if err := c.Next(); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, &Response{
			HttpStatus:       http.StatusServiceUnavailable,
			Explanation:      "failed to queue skip",
			ErrorExplanation: err.Error(),
			Error:            true,
		})
		return
	}
	ctx.JSON(http.StatusAccepted, &Response{
		HttpStatus:  http.StatusAccepted,
		Explanation: "skipping to the next module",
		Success:     true,
	})
}

func (c *Coordinator) playModule(ctx *gin.Context) {
	name := ctx.Param("module")
	if err := c.driver.PlayModule(name); err != nil {
		ctx.JSON(http.StatusNotFound, &Response{
			HttpStatus:       http.StatusNotFound,
			Explanation:      "module not found",
			ErrorExplanation: err.Error(),
			Error:            true,
		})
		return
	}
	ctx.JSON(http.StatusAccepted, &Response{
		HttpStatus:  http.StatusAccepted,
		Explanation: "playing " + name,
		Success:     true,
		Data:        name,
	})
}
