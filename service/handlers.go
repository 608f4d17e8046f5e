package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/eduforma/silabo/normalize"
	"github.com/eduforma/silabo/score"
	"github.com/eduforma/silabo/segment"
	"github.com/eduforma/silabo/session"
	"github.com/eduforma/silabo/template"
)

// --- Extraction pipeline ---

type extractResponse struct {
	SessionID   string                  `json:"session_id"`
	TotalRows   int                     `json:"total_rows"`
	Strategy    normalize.Strategy      `json:"strategy"`
	TotalTitles int                     `json:"total_titles,omitempty"`
	Titles      []session.DetectedTitle `json:"titles,omitempty"`
	Sections    []segment.Section       `json:"sections,omitempty"`
}

func (s *Service) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))

	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeError(w, fmt.Errorf("%w: multipart: %v", errBadRequest, err))
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: missing file field", errBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, fmt.Errorf("read upload: %w", err))
		return
	}

	kindStr := r.FormValue("kind")
	if kindStr == "" {
		kindStr = strings.TrimPrefix(filepath.Ext(hdr.Filename), ".")
	}

	sess, attached, res, err := s.runExtraction(r.Context(), hdr.Filename, kindStr, data)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := extractResponse{
		SessionID: sess.ID,
		TotalRows: len(res.Rows),
		Strategy:  res.Strategy,
	}
	if r.FormValue("mode") == "sections" {
		titles := make([]score.Title, len(attached))
		for i, t := range attached {
			titles[i] = t.Title
		}
		resp.Sections = segment.SplitOrFallback(res.Rows, s.rules, titles)
	} else {
		resp.TotalTitles = len(attached)
		resp.Titles = attached
	}
	writeJSON(w, http.StatusCreated, resp)
}

// runExtraction is the synchronous pipeline behind both the HTTP upload and
// the MCP extract tool: normalize, score, persist session and titles.
func (s *Service) runExtraction(ctx context.Context, filename, kindStr string, data []byte) (*session.Session, []session.DetectedTitle, *normalize.Result, error) {
	kind, err := normalize.ParseKind(kindStr)
	if err != nil {
		return nil, nil, nil, err
	}
	res, err := s.normalizer.Normalize(data, kind)
	if err != nil {
		return nil, nil, nil, err
	}
	titles := s.engine.Scan(res.Rows)

	sess, err := s.sessions.CreateSession(ctx, filename, string(kind), string(res.Strategy), len(res.Rows))
	if err != nil {
		return nil, nil, nil, err
	}
	attached, err := s.sessions.AttachTitles(ctx, sess.ID, titles)
	if err != nil {
		return nil, nil, nil, err
	}

	s.logger.Info("extraction complete",
		"session_id", sess.ID,
		"filename", filename,
		"strategy", res.Strategy,
		"rows", len(res.Rows),
		"titles", len(titles))

	return sess, attached, res, nil
}

// --- Sessions ---

func (s *Service) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListSessions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Service) handleSessionTitles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.sessions.GetSession(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	titles, err := s.sessions.SessionTitles(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, titles)
}

func (s *Service) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Groupings ---

type groupingRequest struct {
	Name     string   `json:"name"`
	Icon     string   `json:"icon"`
	Position int      `json:"position"`
	TitleIDs []string `json:"title_ids"`
}

func (s *Service) handleListGroupings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.sessions.GetSession(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	groupings, err := s.sessions.ListGroupings(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupings)
}

func (s *Service) handleCreateGrouping(w http.ResponseWriter, r *http.Request) {
	var req groupingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if req.Name == "" {
		s.writeError(w, fmt.Errorf("%w: name required", errBadRequest))
		return
	}
	g, err := s.sessions.CreateGrouping(r.Context(), chi.URLParam(r, "sessionID"),
		req.Name, req.Icon, req.Position, req.TitleIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Service) handleUpdateGrouping(w http.ResponseWriter, r *http.Request) {
	var req groupingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	g := &session.Grouping{
		ID:       chi.URLParam(r, "groupingID"),
		Name:     req.Name,
		Icon:     req.Icon,
		Position: req.Position,
		TitleIDs: req.TitleIDs,
	}
	if err := s.sessions.UpdateGrouping(r.Context(), g); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Service) handleDeleteGrouping(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.DeleteGrouping(r.Context(), chi.URLParam(r, "groupingID")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Templates ---

func (s *Service) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		CuratorID string `json:"curator_id"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}
	tpl, err := s.templates.Materialize(r.Context(), s.sessions,
		chi.URLParam(r, "sessionID"), req.Name, req.CuratorID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Service) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.ListTemplates(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Service) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.templates.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// --- Instances and assignments ---

func (s *Service) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"template_id"`
		Title      string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	ins, err := s.templates.CreateInstance(r.Context(), req.TemplateID, req.Title)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ins)
}

func (s *Service) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthorID string `json:"author_id"`
		Subject  string `json:"subject"`
		Level    string `json:"level"`
		Parallel string `json:"parallel"`
		Term     string `json:"term"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if req.AuthorID == "" {
		s.writeError(w, fmt.Errorf("%w: author_id required", errBadRequest))
		return
	}
	a, err := s.templates.AssignInstance(r.Context(), &template.Assignment{
		InstanceID: chi.URLParam(r, "instanceID"),
		AuthorID:   req.AuthorID,
		Subject:    req.Subject,
		Level:      req.Level,
		Parallel:   req.Parallel,
		Term:       req.Term,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Service) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := s.templates.ListAssignments(r.Context(), chi.URLParam(r, "instanceID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Service) handleSetState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.templates.SetAssignmentState(r.Context(), chi.URLParam(r, "assignmentID"), req.State); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// --- Content ---

// instanceSection resolves an instance and one section of its template.
func (s *Service) instanceSection(r *http.Request) (*template.Instance, *template.TemplateSection, error) {
	ins, err := s.templates.GetInstance(r.Context(), chi.URLParam(r, "instanceID"))
	if err != nil {
		return nil, nil, err
	}
	tpl, err := s.templates.GetTemplate(r.Context(), ins.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	sectionID := chi.URLParam(r, "sectionID")
	for i := range tpl.Sections {
		if tpl.Sections[i].ID == sectionID {
			return ins, &tpl.Sections[i], nil
		}
	}
	return nil, nil, fmt.Errorf("%w: section %s", template.ErrNotFound, sectionID)
}

func (s *Service) handleReadContent(w http.ResponseWriter, r *http.Request) {
	ins, err := s.templates.GetInstance(r.Context(), chi.URLParam(r, "instanceID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	tpl, err := s.templates.GetTemplate(r.Context(), ins.TemplateID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	got, err := s.contents.ReadContent(r.Context(), tpl, ins.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Service) handlePutText(w http.ResponseWriter, r *http.Request) {
	ins, sec, err := s.instanceSection(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.contents.UpsertFreeText(r.Context(), ins.ID, sec, req.Text); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Service) handlePutRow(w http.ResponseWriter, r *http.Request) {
	ins, sec, err := s.instanceSection(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	order, err := strconv.Atoi(chi.URLParam(r, "order"))
	if err != nil || order < 0 {
		s.writeError(w, fmt.Errorf("%w: invalid row order", errBadRequest))
		return
	}
	var req struct {
		Values map[string]string `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.contents.UpsertTableRow(r.Context(), ins.ID, sec, order, req.Values); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// --- Lookups ---

func (s *Service) handleLookup(w http.ResponseWriter, r *http.Request) {
	values, err := s.lookups.List(r.Context(), chi.URLParam(r, "catalog"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}
