package attendancesvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/attendance"
)

const basePath = "/api/v1/attendance"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "unexpected status " + http.StatusText(e.StatusCode) + ": " + e.Body
}

type client struct {
	baseURL string
	rest    *rest.Client
}

var _ attendance.Client = (*client)(nil)

func NewClient(conf *core.Config) attendance.Client {
	return newClient(conf.Attendance.BaseURL, conf.Attendance.Timeout)
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL: baseURL,
		rest:    &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
	}
}

func (c *client) request(method rest.Method, token, path string, body []byte) rest.Request {
	headers := map[string]string{"Accept": "application/json"}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	if body != nil {
		headers["Content-Type"] = "application/json"
	}
	return rest.Request{Method: method, BaseURL: c.baseURL + path, Headers: headers, Body: body}
}

func (c *client) send(ctx context.Context, req rest.Request) (*rest.Response, error) {
	hreq, err := rest.BuildRequestObject(req)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s %s", req.Method, req.BaseURL)
	}
	hres, err := c.rest.MakeRequest(hreq.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.BaseURL)
	}
	res, err := rest.BuildResponse(hres)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s %s", req.Method, req.BaseURL)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Wrapf(&StatusError{StatusCode: res.StatusCode, Body: res.Body}, "%s %s", req.Method, req.BaseURL)
	}
	return res, nil
}

func (c *client) Create(ctx context.Context, token string, nr attendance.NewRecord) (attendance.Record, error) {
	body, err := json.Marshal(nr)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "encoding attendance record")
	}
	res, err := c.send(ctx, c.request(rest.Post, token, basePath, body))
	if err != nil {
		return attendance.Record{}, err
	}
	var rec attendance.Record
	if err = json.Unmarshal([]byte(res.Body), &rec); err != nil {
		return attendance.Record{}, errors.Wrap(err, "decoding attendance record")
	}
	return rec, nil
}

func (c *client) ListByStudent(ctx context.Context, token, studentID string) ([]attendance.Record, error) {
	res, err := c.send(ctx, c.request(rest.Get, token, basePath+"/student/"+url.PathEscape(studentID), nil))
	if err != nil {
		return nil, err
	}
	records := make([]attendance.Record, 0)
	if err = json.Unmarshal([]byte(res.Body), &records); err != nil {
		return nil, errors.Wrap(err, "decoding attendance records")
	}
	if records == nil { // "null"
		records = make([]attendance.Record, 0)
	}
	return records, nil
}

func (c *client) Delete(ctx context.Context, token, id string) error {
	_, err := c.send(ctx, c.request(rest.Delete, token, basePath+"/"+url.PathEscape(id), nil))
	return err
}
