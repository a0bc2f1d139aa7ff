package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/spigell/jobfit/internal/advisor"
	"github.com/spigell/jobfit/internal/logger"
)

const fileField = "cv"

type jobForm struct {
	URL string `form:"url" validate:"required"`
}

type chatForm struct {
	Question string `form:"question" validate:"required"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.store.Len(),
	})
}

func (s *Server) index(c echo.Context) error {
	sess := currentSession(c)

	data := pageData{
		Title:   pageTitle,
		Accept:  acceptedExtensions(),
		Session: sess.Snapshot(),
	}
	if notice, ok := sess.TakeNotice(); ok {
		data.Notice = &notice
	}

	return c.Render(http.StatusOK, indexTemplate, data)
}

func (s *Server) uploadCV(c echo.Context) error {
	sess := currentSession(c)

	file, err := c.FormFile(fileField)
	if err != nil {
		sess.SetNotice(advisor.Describe(advisor.ErrEmptyInput))
		return redirectHome(c)
	}

	data, err := readUpload(file, s.opts.MaxUploadBytes)
	if err != nil {
		logger.ForSession(s.logger, sess.ID, "upload_cv").Warn("failed to read upload", zap.Error(err))
		sess.SetNotice(advisor.Describe(err))
		return redirectHome(c)
	}

	notice, _ := s.advisor.UploadCV(c.Request().Context(), sess, file.Filename, data)
	sess.SetNotice(notice)

	return redirectHome(c)
}

func (s *Server) loadJob(c echo.Context) error {
	sess := currentSession(c)

	var form jobForm
	if err := bindForm(c, &form); err != nil {
		sess.SetNotice(advisor.Describe(advisor.ErrEmptyInput))
		return redirectHome(c)
	}

	notice, _ := s.advisor.LoadJob(c.Request().Context(), sess, form.URL)
	sess.SetNotice(notice)

	return redirectHome(c)
}

func (s *Server) chat(c echo.Context) error {
	sess := currentSession(c)

	var form chatForm
	if err := bindForm(c, &form); err != nil {
		sess.SetNotice(advisor.Describe(advisor.ErrEmptyInput))
		return redirectHome(c)
	}

	if _, err := s.advisor.Chat(c.Request().Context(), sess, form.Question); err != nil {
		sess.SetNotice(advisor.Describe(err))
	}

	return redirectHome(c)
}

func (s *Server) reset(c echo.Context) error {
	sess := currentSession(c)
	sess.SetNotice(s.advisor.Reset(sess))

	return redirectHome(c)
}

// analyzeStream runs the fit analysis and relays it as Server-Sent Events:
// "fragment" for every piece of text, then "complete" or "error".
func (s *Server) analyzeStream(c echo.Context) error {
	sess := currentSession(c)

	w, err := newSSEWriter(c.Response())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	_, err = s.advisor.Analyze(c.Request().Context(), sess, func(text string) error {
		return w.WriteEvent("fragment", map[string]string{"text": text})
	})

	notice := advisor.Describe(err)
	sess.SetNotice(notice)

	event := "complete"
	if err != nil {
		event = "error"
	}

	if writeErr := w.WriteEvent(event, map[string]string{"level": string(notice.Level), "message": notice.Text}); writeErr != nil {
		logger.ForSession(s.logger, sess.ID, "analyze").Debug("client left before the final event", zap.Error(writeErr))
	}

	return nil
}

func bindForm(c echo.Context, form any) error {
	if err := c.Bind(form); err != nil {
		return err
	}
	return c.Validate(form)
}

func redirectHome(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/")
}

// readUpload reads at most limit+1 bytes so that oversized files are detected
// without buffering them whole.
func readUpload(file *multipart.FileHeader, limit int64) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	return data, nil
}
