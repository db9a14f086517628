package listview

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/querystate"
	"github.com/kbukum/viewkit/resource"
	"github.com/kbukum/viewkit/server"
	"github.com/kbukum/viewkit/validation"
)

// HeaderCanonicalQuery carries the normalized list query, so clients can
// rewrite their address bar without default-valued keys.
const HeaderCanonicalQuery = "X-Canonical-Query"

// Handler serves GET /<resource>?status=..&sortBy=..&page=.. as a Page.
func (v *View[T]) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Request.URL.RawQuery
		d := v.Descriptor(raw)
		page, err := v.LoadDescriptor(c.Request.Context(), d)
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		c.Header(HeaderCanonicalQuery, querystate.Encode(d, v.defaults).Apply(raw))
		c.JSON(http.StatusOK, page)
	}
}

// Register mounts the list and item routes of the view on r:
//
//	GET    /<resource>        list page
//	POST   /<resource>        insert one row or an array of rows
//	PATCH  /<resource>/:id    update one row
//	DELETE /<resource>/:id    delete one row
func (v *View[T]) Register(r gin.IRoutes) {
	base := "/" + v.name
	r.GET(base, v.Handler())
	r.POST(base, v.createHandler())
	r.PATCH(base+"/:id", v.updateHandler())
	r.DELETE(base+"/:id", v.deleteHandler())
}

func (v *View[T]) createHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := bindRows(c)
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		out, err := v.Insert(c.Request.Context(), rows...)
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		server.RespondCreated(c, out)
	}
}

func (v *View[T]) updateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := bindRows(c)
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		if len(rows) != 1 {
			server.RespondWithError(c, errors.InvalidInput("body", "expected a single object"))
			return
		}
		id := c.Param("id")
		out, err := v.Update(c.Request.Context(), rows[0], resource.Eq(v.keyColumn, id))
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		if len(out) == 0 {
			server.RespondWithError(c, errors.NotFound(v.name, id))
			return
		}
		server.RespondOK(c, out[0])
	}
}

func (v *View[T]) deleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := v.Delete(c.Request.Context(), resource.Eq(v.keyColumn, c.Param("id"))); err != nil {
			server.RespondWithError(c, err)
			return
		}
		server.RespondNoContent(c)
	}
}

// bindRows reads a JSON object or array of objects and checks every key is
// a plain column name.
func bindRows(c *gin.Context) ([]resource.Row, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, errors.InvalidInput("body", "unreadable request body").WithCause(err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.MissingField("body")
	}

	var rows []resource.Row
	if body[0] == '[' {
		err = json.Unmarshal(body, &rows)
	} else {
		var row resource.Row
		err = json.Unmarshal(body, &row)
		rows = []resource.Row{row}
	}
	if err != nil {
		return nil, errors.InvalidInput("body", "invalid JSON").WithCause(err)
	}

	check := validation.New()
	for _, row := range rows {
		check.Custom(len(row) > 0, "body", "rows must not be empty")
		for col := range row {
			check.Identifier(col, col)
		}
	}
	if appErr := check.Validate(); appErr != nil {
		return nil, appErr
	}
	return rows, nil
}
