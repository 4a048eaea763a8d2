// bison-stub is an in-memory stand-in for the EmailBison API, used for
// local development and end-to-end CLI testing. All state lives in
// memory and is lost on restart. Lead-list CSV uploads are "processed"
// asynchronously after a short delay, so the CLI's polling loop can be
// exercised for real.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type campaign struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`

	TotalLeads     int   `json:"total_leads"`
	SenderEmailIDs []int `json:"-"`
	SequenceID     int   `json:"-"`
}

type leadList struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Leads  int    `json:"leads_count"`
}

type senderEmail struct {
	ID     int    `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type sequenceStep struct {
	ID           int    `json:"id"`
	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`
	WaitInDays   int    `json:"wait_in_days"`
}

type sequence struct {
	ID    int            `json:"id"`
	Title string         `json:"title"`
	Steps []sequenceStep `json:"sequence_steps"`
}

// store is the whole API state behind one lock. processDelay is how long
// an uploaded lead list stays in "unprocessed" before completing.
type store struct {
	mu           sync.Mutex
	nextID       int
	campaigns    map[int]*campaign
	leadLists    map[int]*leadList
	senderEmails map[int]*senderEmail
	sequences    map[int]*sequence

	processDelay time.Duration
}

func newStore(processDelay time.Duration) *store {
	s := &store{
		nextID:       1000,
		campaigns:    map[int]*campaign{},
		leadLists:    map[int]*leadList{},
		senderEmails: map[int]*senderEmail{},
		sequences:    map[int]*sequence{},
		processDelay: processDelay,
	}
	// Seed a few connected sender accounts so selectors resolve.
	for i, addr := range []string{
		"outreach1@example-sender.com",
		"outreach2@example-sender.com",
		"outreach3@example-sender.com",
	} {
		id := s.nextID
		s.nextID++
		status := "Connected"
		if i == 2 {
			status = "Disconnected"
		}
		s.senderEmails[id] = &senderEmail{ID: id, Email: addr, Name: fmt.Sprintf("Sender %d", i+1), Status: status}
	}
	return s
}

func (s *store) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}

func main() {
	addr := os.Getenv("BISON_STUB_ADDR")
	if addr == "" {
		addr = ":8808"
	}
	delay := 4 * time.Second
	if v := os.Getenv("BISON_STUB_PROCESS_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			delay = d
		}
	}

	st := newStore(delay)
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requireBearer)

	r.Route("/api/campaigns", func(r chi.Router) {
		r.Get("/", st.listCampaigns)
		r.Post("/", st.createCampaign)

		r.Route("/v1.1/{campaignID}", func(r chi.Router) {
			r.Get("/sequence-steps", st.getSequence)
			r.Post("/sequence-steps", st.createSequence)
		})
		r.Put("/v1.1/sequence-steps/{sequenceID}", st.updateSequence)
		r.Delete("/sequence-steps/{stepID}", st.deleteSequenceStep)
		r.Post("/sequence-steps/{stepID}/test-email", st.testSequenceEmail)

		r.Route("/{campaignID}", func(r chi.Router) {
			r.Get("/", st.getCampaign)
			r.Patch("/update", st.updateCampaign)
			r.Post("/schedule", st.setSchedule)
			r.Patch("/pause", st.setStatus("paused"))
			r.Patch("/resume", st.setStatus("active"))
			r.Patch("/archive", st.setStatus("archived"))
			r.Post("/stats", st.campaignStats)
			r.Get("/replies", st.campaignReplies)

			r.Post("/leads/attach-lead-list", st.attachLeadList)
			r.Post("/leads/attach-leads", st.attachLeads)
			r.Post("/leads/stop-future-emails", st.stopFutureEmails)

			r.Get("/sender-emails", st.campaignSenderEmails)
			r.Post("/attach-sender-emails", st.attachSenderEmails)
			r.Delete("/remove-sender-emails", st.removeSenderEmails)
		})
	})

	r.Get("/api/leads/lists/{leadListID}", st.getLeadList)
	r.Post("/api/leads/bulk/csv", st.uploadLeadsCSV)
	r.Get("/api/sender-emails", st.listSenderEmails)

	log.Printf("bison-stub listening on %s (lead list process delay %s)", addr, delay)
	log.Printf("all state is in-memory; responses mimic EmailBison shapes")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal(err)
	}
}

// ========== Middleware ==========

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") == "" {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ========== Helpers ==========

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, v interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"message": msg})
}

func urlID(r *http.Request, key string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, key))
	return id, err == nil && id > 0
}

func (s *store) findCampaign(w http.ResponseWriter, r *http.Request) (*campaign, bool) {
	id, ok := urlID(r, "campaignID")
	if !ok {
		writeError(w, http.StatusNotFound, "campaign not found")
		return nil, false
	}
	c, ok := s.campaigns[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("campaign %d not found", id))
		return nil, false
	}
	return c, true
}

// ========== Campaign Handlers ==========

func (s *store) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	if req.Type == "" {
		req.Type = "outbound"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := &campaign{ID: s.allocID(), Name: req.Name, Type: req.Type, Status: "draft"}
	s.campaigns[c.ID] = c
	writeData(w, c)
}

func (s *store) listCampaigns(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*campaign{}
	for _, c := range s.campaigns {
		out = append(out, c)
	}
	writeData(w, out)
}

func (s *store) getCampaign(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findCampaign(w, r)
	if !ok {
		return
	}
	writeData(w, c)
}

func (s *store) updateCampaign(w http.ResponseWriter, r *http.Request) {
	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid settings payload")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findCampaign(w, r)
	if !ok {
		return
	}
	if name, ok := patch["name"].(string); ok && name != "" {
		c.Name = name
	}
	writeData(w, c)
}

func (s *store) setSchedule(w http.ResponseWriter, r *http.Request) {
	var schedule map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&schedule); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid schedule payload")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findCampaign(w, r)
	if !ok {
		return
	}
	writeData(w, map[string]interface{}{"campaign_id": c.ID, "schedule": schedule})
}

func (s *store) setStatus(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.findCampaign(w, r)
		if !ok {
			return
		}
		c.Status = status
		writeData(w, c)
	}
}

func (s *store) campaignStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findCampaign(w, r)
	if !ok {
		return
	}
	writeData(w, map[string]interface{}{
		"campaign_id":     c.ID,
		"emails_sent":     0,
		"opens":           0,
		"replies":         0,
		"bounced":         0,
		"unsubscribed":    0,
		"total_leads":     c.TotalLeads,
		"leads_contacted": 0,
	})
}

func (s *store) campaignReplies(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findCampaign(w, r); !ok {
		return
	}
	writeData(w, []interface{}{})
}

// ========== Sequence Handlers ==========

func (s *store) getSequence(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findCampaign(w, r)
	if !ok {
		return
	}
	seq, ok := s.sequences[c.SequenceID]
	if !ok {
		writeData(w, map[string]interface{}{"sequence_steps": []interface{}{}})
		return
	}
	writeData(w, seq)
}

func (s *store) createSequence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Steps []struct {
			EmailSubject string `json:"email_subject"`
			EmailBody    string `json:"email_body"`
			WaitInDays   int    `json:"wait_in_days"`
		} `json:"sequence_steps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Steps) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "sequence_steps are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findCampaign(w, r)
	if !ok {
		return
	}
	seq := &sequence{ID: s.allocID(), Title: req.Title}
	for _, step := range req.Steps {
		seq.Steps = append(seq.Steps, sequenceStep{
			ID:           s.allocID(),
			EmailSubject: step.EmailSubject,
			EmailBody:    step.EmailBody,
			WaitInDays:   step.WaitInDays,
		})
	}
	s.sequences[seq.ID] = seq
	c.SequenceID = seq.ID
	writeData(w, seq)
}

func (s *store) updateSequence(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "sequenceID")
	if !ok {
		writeError(w, http.StatusNotFound, "sequence not found")
		return
	}
	var req struct {
		Title string         `json:"title"`
		Steps []sequenceStep `json:"sequence_steps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid sequence payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	seq, found := s.sequences[id]
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("sequence %d not found", id))
		return
	}
	seq.Title = req.Title
	seq.Steps = nil
	for _, step := range req.Steps {
		if step.ID == 0 {
			step.ID = s.allocID()
		}
		seq.Steps = append(seq.Steps, step)
	}
	writeData(w, seq)
}

func (s *store) deleteSequenceStep(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "stepID")
	if !ok {
		writeError(w, http.StatusNotFound, "sequence step not found")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seq := range s.sequences {
		for i, step := range seq.Steps {
			if step.ID == id {
				seq.Steps = append(seq.Steps[:i], seq.Steps[i+1:]...)
				writeData(w, map[string]interface{}{"deleted": true, "id": id})
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("sequence step %d not found", id))
}

func (s *store) testSequenceEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "stepID")
	if !ok {
		writeError(w, http.StatusNotFound, "sequence step not found")
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "email is required")
		return
	}
	writeData(w, map[string]interface{}{"step_id": id, "sent_to": req.Email})
}

// ========== Lead Handlers ==========

func (s *store) uploadLeadsCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid multipart form")
		return
	}
	name := r.FormValue("name")
	file, _, err := r.FormFile("csv")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "csv file is required")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "could not parse csv")
		return
	}
	leads := len(rows) - 1
	if leads < 0 {
		leads = 0
	}

	s.mu.Lock()
	list := &leadList{ID: s.allocID(), Name: name, Status: "unprocessed", Leads: leads}
	s.leadLists[list.ID] = list
	s.mu.Unlock()

	// Flip to a terminal status after the configured delay.
	go func(id int) {
		time.Sleep(s.processDelay)
		s.mu.Lock()
		defer s.mu.Unlock()
		if l, ok := s.leadLists[id]; ok {
			l.Status = "completed"
		}
	}(list.ID)

	writeData(w, map[string]interface{}{"lead_list": list})
}

func (s *store) getLeadList(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "leadListID")
	if !ok {
		writeError(w, http.StatusNotFound, "lead list not found")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list, found := s.leadLists[id]
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("lead list %d not found", id))
		return
	}
	writeData(w, list)
}

func (s *store) attachLeadList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeadListID int `json:"lead_list_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid payload")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findCampaign(w, r)
	if !ok {
		return
	}
	list, found := s.leadLists[req.LeadListID]
	if !found {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("lead list %d not found", req.LeadListID))
		return
	}
	c.TotalLeads += list.Leads
	writeData(w, c)
}

func (s *store) attachLeads(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeadIDs []int `json:"lead_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.LeadIDs) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "lead_ids are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findCampaign(w, r)
	if !ok {
		return
	}
	c.TotalLeads += len(req.LeadIDs)
	writeData(w, c)
}

func (s *store) stopFutureEmails(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeadIDs []int `json:"lead_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.LeadIDs) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "lead_ids are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findCampaign(w, r)
	if !ok {
		return
	}
	writeData(w, map[string]interface{}{"campaign_id": c.ID, "stopped": len(req.LeadIDs)})
}

// ========== Sender Email Handlers ==========

func (s *store) listSenderEmails(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(r.URL.Query().Get("search"))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*senderEmail{}
	for _, se := range s.senderEmails {
		if search != "" && !strings.Contains(strings.ToLower(se.Email), search) {
			continue
		}
		out = append(out, se)
	}
	writeData(w, out)
}

func (s *store) campaignSenderEmails(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findCampaign(w, r)
	if !ok {
		return
	}
	out := []*senderEmail{}
	for _, id := range c.SenderEmailIDs {
		if se, found := s.senderEmails[id]; found {
			out = append(out, se)
		}
	}
	writeData(w, out)
}

func (s *store) attachSenderEmails(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.decodeSenderIDs(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.findCampaign(w, r)
	if !found {
		return
	}
	for _, id := range ids {
		if _, exists := s.senderEmails[id]; !exists {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("sender email %d not found", id))
			return
		}
	}
	c.SenderEmailIDs = append(c.SenderEmailIDs, ids...)
	writeData(w, c)
}

func (s *store) removeSenderEmails(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.decodeSenderIDs(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.findCampaign(w, r)
	if !found {
		return
	}
	remove := map[int]struct{}{}
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	kept := c.SenderEmailIDs[:0]
	for _, id := range c.SenderEmailIDs {
		if _, drop := remove[id]; !drop {
			kept = append(kept, id)
		}
	}
	c.SenderEmailIDs = kept
	writeData(w, c)
}

// decodeSenderIDs parses the string-typed sender_email_ids list the real
// API expects.
func (s *store) decodeSenderIDs(w http.ResponseWriter, r *http.Request) ([]int, bool) {
	var req struct {
		SenderEmailIDs []string `json:"sender_email_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.SenderEmailIDs) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "sender_email_ids are required")
		return nil, false
	}
	ids := make([]int, 0, len(req.SenderEmailIDs))
	for _, raw := range req.SenderEmailIDs {
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid sender email id %q", raw))
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
