package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"

	"petclinic/backend/internal/domain"
	"petclinic/backend/internal/service/scheduling"
	"petclinic/backend/internal/store"
)

const dateLayout = "2006-01-02"

type schedulingService interface {
	Schedule(ctx context.Context, in scheduling.ScheduleInput) (scheduling.ScheduleResult, error)
	Cancel(ctx context.Context, visitID uuid.UUID) error
	VisitsForPet(ctx context.Context, petID int64) ([]domain.Visit, error)
	WorkingHours() []domain.WorkingHour
	ResolveWorkingHour(text string) (domain.WorkingHour, error)
}

type VisitsServer struct {
	svc        schedulingService
	log        *slog.Logger
	validate   *validator.Validate
	translator ut.Translator
}

func NewVisitsServer(svc schedulingService, log *slog.Logger) (*VisitsServer, error) {
	if log == nil {
		log = slog.Default()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &VisitsServer{
		svc:        svc,
		log:        log.With(slog.String("component", "http.visits")),
		validate:   validate,
		translator: trans,
	}, nil
}

func (s *VisitsServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/working-hours", s.listWorkingHours)

	r.Route("/pets/{petID}/visits", func(pr chi.Router) {
		pr.Post("/", s.scheduleVisit)
		pr.Get("/", s.listVisits)
	})

	r.Delete("/visits/{visitID}", s.cancelVisit)

	return r
}

type scheduleVisitRequest struct {
	Date          string `json:"date" validate:"required"`
	WorkingHourID int64  `json:"working_hour_id" validate:"required_without=Time"`
	Time          string `json:"time" validate:"required_without=WorkingHourID"`
	Description   string `json:"description" validate:"max=8192"`
}

type visitResponse struct {
	ID            string `json:"id"`
	PetID         int64  `json:"pet_id"`
	Date          string `json:"date"`
	WorkingHourID int64  `json:"working_hour_id"`
	Time          string `json:"time,omitempty"`
	Description   string `json:"description,omitempty"`
}

type violationsResponse struct {
	Violations []domain.Violation `json:"violations"`
}

func (s *VisitsServer) scheduleVisit(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "scheduleVisit"))

	petID, ok := s.petID(w, r, log)
	if !ok {
		return
	}

	var req scheduleVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"), slog.Int64("pet_id", petID))
		s.errorJSON(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		log.Warn("invalid request", slog.Any("err", err), slog.Int64("pet_id", petID))
		s.errorJSON(w, http.StatusBadRequest, s.bindingMessage(err))
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_date"), slog.String("date", req.Date), slog.Int64("pet_id", petID))
		s.errorJSON(w, http.StatusBadRequest, "date must use the YYYY-MM-DD format")
		return
	}

	workingHourID := req.WorkingHourID
	if workingHourID == 0 {
		slot, err := s.svc.ResolveWorkingHour(req.Time)
		if err != nil {
			s.workingHourError(w, log, err, slog.String("time", req.Time))
			return
		}
		workingHourID = slot.ID
	}

	res, err := s.svc.Schedule(r.Context(), scheduling.ScheduleInput{
		PetID:         petID,
		Date:          date,
		WorkingHourID: workingHourID,
		Description:   req.Description,
		Now:           time.Now(),
	})
	if err != nil {
		s.workingHourError(w, log, err, slog.Int64("pet_id", petID), slog.Int64("working_hour_id", workingHourID))
		return
	}

	switch res.Status {
	case scheduling.StatusBooked:
		log.Info(
			"visit booked",
			slog.String("visit_id", res.Visit.ID.String()),
			slog.Int64("pet_id", petID),
			slog.String("date", req.Date),
			slog.Int64("working_hour_id", workingHourID),
		)
		s.writeJSON(w, http.StatusCreated, s.toVisitResponse(res.Visit))
	case scheduling.StatusSlotTaken:
		log.Info(
			"visit slot taken",
			slog.Int64("pet_id", petID),
			slog.String("date", req.Date),
			slog.Int64("working_hour_id", workingHourID),
		)
		s.writeJSON(w, http.StatusConflict, violationsResponse{Violations: res.Violations})
	default:
		log.Info("visit rejected", slog.Int64("pet_id", petID), slog.Int("violations", len(res.Violations)))
		s.writeJSON(w, http.StatusUnprocessableEntity, violationsResponse{Violations: res.Violations})
	}
}

func (s *VisitsServer) listVisits(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "listVisits"))

	petID, ok := s.petID(w, r, log)
	if !ok {
		return
	}

	visits, err := s.svc.VisitsForPet(r.Context(), petID)
	if err != nil {
		log.Error("visit list failed", slog.Any("err", err), slog.Int64("pet_id", petID))
		s.errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]visitResponse, 0, len(visits))
	for _, v := range visits {
		out = append(out, s.toVisitResponse(v))
	}

	log.Debug("visits listed", slog.Int64("pet_id", petID), slog.Int("count", len(out)))
	s.writeJSON(w, http.StatusOK, map[string][]visitResponse{"visits": out})
}

func (s *VisitsServer) cancelVisit(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("handler", "cancelVisit"))

	visitID, err := uuid.Parse(chi.URLParam(r, "visitID"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		s.errorJSON(w, http.StatusBadRequest, "visit id must be a UUID")
		return
	}

	if err := s.svc.Cancel(r.Context(), visitID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("visit not found", slog.String("visit_id", visitID.String()))
			s.errorJSON(w, http.StatusNotFound, "visit not found")
			return
		}
		log.Error("visit cancel failed", slog.Any("err", err), slog.String("visit_id", visitID.String()))
		s.errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info("visit cancelled", slog.String("visit_id", visitID.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *VisitsServer) listWorkingHours(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]domain.WorkingHour{"working_hours": s.svc.WorkingHours()})
}

func (s *VisitsServer) petID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (int64, bool) {
	petID, err := strconv.ParseInt(chi.URLParam(r, "petID"), 10, 64)
	if err != nil || petID <= 0 {
		log.Warn("invalid request", slog.String("reason", "invalid_pet_id"), slog.String("pet_id", chi.URLParam(r, "petID")))
		s.errorJSON(w, http.StatusBadRequest, "pet id must be a positive integer")
		return 0, false
	}
	return petID, true
}

// workingHourError maps slot-resolution failures: unknown slot is a caller
// error distinct from validation violations, and undecodable slot text is a
// bad request, never an empty violation set.
func (s *VisitsServer) workingHourError(w http.ResponseWriter, log *slog.Logger, err error, args ...any) {
	switch {
	case errors.Is(err, domain.ErrWorkingHourNotFound):
		log.Warn("working hour not found", args...)
		s.errorJSON(w, http.StatusNotFound, "working hour not found")
	case errors.Is(err, domain.ErrBadClockTime):
		log.Warn("working hour does not parse", args...)
		s.errorJSON(w, http.StatusBadRequest, "time must be a clock time like 9:00 AM")
	default:
		log.Error("visit schedule failed", append([]any{slog.Any("err", err)}, args...)...)
		s.errorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *VisitsServer) bindingMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err.Error()
	}
	return validationErrors[0].Translate(s.translator)
}

func (s *VisitsServer) toVisitResponse(v domain.Visit) visitResponse {
	out := visitResponse{
		ID:            v.ID.String(),
		PetID:         v.PetID,
		Date:          v.Date.Format(dateLayout),
		WorkingHourID: v.WorkingHourID,
		Description:   v.Description,
	}
	for _, wh := range s.svc.WorkingHours() {
		if wh.ID == v.WorkingHourID {
			out.Time = wh.Name
			break
		}
	}
	return out
}

func (s *VisitsServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encode failed", slog.Any("err", err))
	}
}

func (s *VisitsServer) errorJSON(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
