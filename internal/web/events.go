package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	appLog "qlcal/internal/log"
	"qlcal/internal/model"
	"qlcal/internal/ql"
	"qlcal/internal/schedule"
)

type eventDTO struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Predicate   string `json:"predicate"`
	TimePair    string `json:"time_pair"`
}

func toDTO(id schedule.ID, e schedule.Event) eventDTO {
	r := e.Record()
	return eventDTO{
		ID:          uint64(id),
		Title:       r.Title,
		Description: r.Description,
		Predicate:   r.Predicate,
		TimePair:    r.TimePair,
	}
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Predicate   string `json:"predicate"`
	TimePair    string `json:"time_pair"`
	// Date anchors the default predicate when Predicate is blank.
	Date string `json:"date,omitempty"`
}

type editRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Predicate   *string `json:"predicate"`
	TimePair    *string `json:"time_pair"`
}

// today is the current date in the configured zone.
func (s *Server) today() ql.Date {
	return ql.DateOf(s.now().In(s.loc))
}

// dateParam reads a YYYY-MM-DD query parameter, defaulting to today.
func (s *Server) dateParam(r *http.Request, name string) (ql.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return s.today(), nil
	}
	return ql.ParseDate(v)
}

func pathID(r *http.Request) (schedule.ID, bool) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return schedule.ID(n), true
}

// handleListEvents lists every event, or with ?date= only those that occur
// on that date.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	var (
		date    ql.Date
		filter  = r.URL.Query().Has("date")
		err     error
		results = make([]eventDTO, 0)
	)
	if filter {
		if date, err = s.dateParam(r, "date"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
	}

	s.View(func(sched *schedule.Schedule) {
		seq := sched.All()
		if filter {
			seq = sched.EventsOn(ql.Context{Date: date})
		}
		for id, e := range seq {
			results = append(results, toDTO(id, e))
		}
	})
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	var (
		e     schedule.Event
		found bool
	)
	s.View(func(sched *schedule.Schedule) { e, found = sched.Get(id) })
	if !found {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, toDTO(id, e))
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := schedule.RequireTitle(req.Title); err != nil {
		writeFieldError(w, err)
		return
	}
	if strings.TrimSpace(req.Predicate) == "" {
		date := s.today()
		if req.Date != "" {
			d, err := ql.ParseDate(req.Date)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid date, want YYYY-MM-DD", Field: "date"})
				return
			}
			date = d
		}
		req.Predicate = schedule.DefaultPredicate(date).String()
	}

	e, err := schedule.NewEvent(req.Title, req.Description, req.Predicate, req.TimePair)
	if err != nil {
		writeFieldError(w, err)
		return
	}

	var id schedule.ID
	err = s.Update(r.Context(), func(sched *schedule.Schedule) error {
		id = sched.Add(e)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist schedule")
		return
	}
	appLog.Info("event created", "id", id, "title", e.Title, "predicate", e.Predicate)
	writeJSON(w, http.StatusCreated, toDTO(id, e))
}

func (s *Server) handleEditEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ed := schedule.Edit{Title: req.Title, Description: req.Description}
	if req.Title != nil {
		if err := schedule.RequireTitle(*req.Title); err != nil {
			writeFieldError(w, err)
			return
		}
	}
	if req.Predicate != nil {
		p, err := ql.ParsePredicate(*req.Predicate)
		if err != nil {
			writeFieldError(w, &schedule.FieldError{Field: "predicate", Err: err})
			return
		}
		ed.Predicate = p
	}
	if req.TimePair != nil {
		tp, err := ql.ParseTimePair(*req.TimePair)
		if err != nil {
			writeFieldError(w, &schedule.FieldError{Field: "time_pair", Err: err})
			return
		}
		ed.TimePair = &tp
	}

	var (
		e     schedule.Event
		found bool
	)
	err := s.Update(r.Context(), func(sched *schedule.Schedule) error {
		if found = sched.Edit(id, ed); !found {
			return errNotFound
		}
		e, _ = sched.Get(id)
		return nil
	})
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "event not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to persist schedule")
		return
	}
	writeJSON(w, http.StatusOK, toDTO(id, e))
}

var errNotFound = errors.New("event not found")

func (s *Server) handleCancelEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	var e schedule.Event
	err := s.Update(r.Context(), func(sched *schedule.Schedule) error {
		var found bool
		if e, found = sched.Cancel(id); !found {
			return errNotFound
		}
		return nil
	})
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "event not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to persist schedule")
		return
	}
	appLog.Info("event cancelled", "id", id, "title", e.Title)
	writeJSON(w, http.StatusOK, toDTO(id, e))
}

type agendaResponse struct {
	From        string             `json:"from"`
	Days        int                `json:"days"`
	TimeZone    string             `json:"timezone"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	from, err := s.dateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
		return
	}
	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.HorizonDays)
	if days <= 0 || days > maxAgendaDays {
		writeError(w, http.StatusBadRequest, "days must be between 1 and "+strconv.Itoa(maxAgendaDays))
		return
	}

	resp := agendaResponse{From: from.String(), Days: days, TimeZone: s.loc.String()}
	s.View(func(sched *schedule.Schedule) {
		resp.Occurrences = sched.Occurrences(from, days, s.loc)
	})
	if resp.Occurrences == nil {
		resp.Occurrences = []model.Occurrence{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type upcomingResponse struct {
	Now    time.Time  `json:"now"`
	Within string     `json:"within"`
	Events []eventDTO `json:"events"`
}

// handleUpcoming lists today's events starting within the configured window
// that have not ended yet.
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.loc)
	within := s.cfg.Within()
	resp := upcomingResponse{Now: now, Within: within.String(), Events: make([]eventDTO, 0)}
	s.View(func(sched *schedule.Schedule) {
		for id, e := range sched.Upcoming(ql.DateOf(now), ql.TimeOf(now), within) {
			resp.Events = append(resp.Events, toDTO(id, e))
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

type evalResponse struct {
	Expression string `json:"expression"`
	Date       string `json:"date"`
	Value      string `json:"value"`
	Type       string `json:"type"`
}

// handleEval evaluates an arbitrary expression against a date, for trying
// out predicates before saving them.
func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	expr, err := ql.ParseExpression(r.URL.Query().Get("expr"))
	if err != nil {
		writeQLError(w, http.StatusBadRequest, "expr", err)
		return
	}
	v, err := expr.Evaluate(ql.Context{Date: date})
	if err != nil {
		writeQLError(w, http.StatusUnprocessableEntity, "expr", err)
		return
	}
	writeJSON(w, http.StatusOK, evalResponse{
		Expression: expr.String(),
		Date:       date.String(),
		Value:      v.String(),
		Type:       ql.TypeName(v),
	})
}

func writeQLError(w http.ResponseWriter, status int, field string, err error) {
	resp := errorResponse{Error: err.Error(), Field: field}
	var qe *ql.Error
	if errors.As(err, &qe) {
		resp.Kind = string(qe.Kind)
	}
	writeJSON(w, status, resp)
}

func writeFieldError(w http.ResponseWriter, err error) {
	var fe *schedule.FieldError
	switch {
	case errors.As(err, &fe):
		writeQLError(w, http.StatusBadRequest, fe.Field, err)
	case errors.Is(err, schedule.ErrEmptyTitle):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: "title"})
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
