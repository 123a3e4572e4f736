package server

import (
	"net/http"

	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": s.templates.List(),
	})
}

func (s *Server) handleTemplateGenerate(w http.ResponseWriter, r *http.Request) {
	var req protocol.TemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TemplateID == "" || req.ProjectName == "" {
		badRequest(w, "templateId and projectName are required")
		return
	}

	res, err := s.templates.Generate(r.Context(), req.TemplateID, req.ProjectName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProjectResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.inspector.Resources())
}

func (s *Server) handleProjectAnalyze(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.inspector.Analyze())
}

func (s *Server) handleBranchWorkflow(w http.ResponseWriter, r *http.Request) {
	var req protocol.BranchWorkflowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.BranchName == "" {
		badRequest(w, "branchName is required")
		return
	}

	res, err := s.inspector.BranchWorkflow(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
