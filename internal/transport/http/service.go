package httptransport

import (
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/oto-macenauer/school-summary/internal/app/scheduler"
	"github.com/oto-macenauer/school-summary/internal/app/students"
	"github.com/oto-macenauer/school-summary/internal/domain/prepare"
	"github.com/oto-macenauer/school-summary/internal/domain/prompt"
	"github.com/oto-macenauer/school-summary/internal/domain/summary"
	"github.com/oto-macenauer/school-summary/internal/platform/config"
	"github.com/oto-macenauer/school-summary/internal/platform/errors"
	"github.com/oto-macenauer/school-summary/internal/platform/logging"
)

const defaultLogLimit = 200

// Service is the HTTP read surface over the in-memory student snapshots,
// the scheduler and the admin facilities. Handlers never call upstream
// services; everything served here was fetched by a background job.
type Service struct {
	cfg       *config.Config
	manager   *students.Manager
	scheduler *scheduler.Scheduler
	ring      *logging.Ring
	logger    *slog.Logger
	startedAt time.Time
}

// NewService creates the HTTP service.
func NewService(cfg *config.Config, manager *students.Manager, sched *scheduler.Scheduler, ring *logging.Ring, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "http.new", "config is required")
	}
	if manager == nil {
		return nil, errors.New(errors.KindConfig, "http.new", "student manager is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Service{
		cfg:       cfg,
		manager:   manager,
		scheduler: sched,
		ring:      ring,
		logger:    logger,
		startedAt: time.Now(),
	}, nil
}

// Register attaches every route to the /api group.
func (s *Service) Register(router *gin.RouterGroup) {
	router.GET("/status", s.handleStatus)
	router.GET("/students", s.handleStudents)

	student := router.Group("/students/:name")
	{
		student.GET("/timetable", s.handleTimetable)
		student.GET("/marks", s.handleMarks)
		student.GET("/komens", s.handleKomens)
		student.GET("/summary", s.handleSummary)
		student.GET("/prepare", s.handlePrepare)
		student.GET("/dashboard", s.handleDashboard)
		student.GET("/variables", s.handleVariables)
		student.POST("/prompt", s.handlePromptResolve)
	}

	router.GET("/canteen", s.handleCanteen)
	router.GET("/mail", s.handleMail)
	router.GET("/config", s.handleConfig)

	admin := router.Group("/admin")
	{
		admin.GET("/scheduler", s.handleSchedulerAll)
		admin.GET("/scheduler/:job", s.handleSchedulerJob)
		admin.GET("/reports", s.handleReports)
		admin.GET("/logs", s.handleLogs)
		admin.GET("/system", s.handleSystem)
		admin.GET("/ai-usage", s.handleAIUsage)
	}

	s.logger.Info("routes registered", logging.Category(logging.CategoryHTTP))
}

func (s *Service) student(c *gin.Context) (*students.Context, bool) {
	name := c.Param("name")
	sc, ok := s.manager.Student(name)
	if !ok {
		RespondError(c, http.StatusNotFound, "unknown student: "+name, nil)
		return nil, false
	}
	return sc, true
}

// studentStatus mirrors what the scheduler has managed to fetch so far;
// nil timestamps mean the first run of that job has not completed.
type studentStatus struct {
	Authenticated    bool       `json:"authenticated"`
	TimetableUpdated *time.Time `json:"timetable_updated"`
	MarksUpdated     *time.Time `json:"marks_updated"`
	KomensUpdated    *time.Time `json:"komens_updated"`
	SummaryUpdated   *time.Time `json:"summary_updated"`
	PrepareUpdated   *time.Time `json:"prepare_updated"`
}

func stamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Service) handleStatus(c *gin.Context) {
	out := make(map[string]studentStatus, len(s.manager.Names()))
	for _, sc := range s.manager.All() {
		tt, mk, km, sm, pp := sc.SnapshotTimes()
		out[sc.Name] = studentStatus{
			Authenticated:    sc.Client.Auth().Authenticated(),
			TimetableUpdated: stamp(tt),
			MarksUpdated:     stamp(mk),
			KomensUpdated:    stamp(km),
			SummaryUpdated:   stamp(sm),
			PrepareUpdated:   stamp(pp),
		}
	}
	RespondSuccess(c, http.StatusOK, gin.H{
		"status":           "ok",
		"students":         out,
		"ai_available":     s.manager.Generator() != nil,
		"gdrive_available": s.manager.Drive() != nil,
	}, "")
}

type studentOverview struct {
	Name         string `json:"name"`
	HasTimetable bool   `json:"has_timetable"`
	HasMarks     bool   `json:"has_marks"`
}

func (s *Service) handleStudents(c *gin.Context) {
	out := make([]studentOverview, 0, len(s.manager.Names()))
	for _, sc := range s.manager.All() {
		out = append(out, studentOverview{
			Name:         sc.Name,
			HasTimetable: sc.HasTimetable(),
			HasMarks:     sc.HasMarks(),
		})
	}
	RespondSuccess(c, http.StatusOK, out, "")
}

func (s *Service) handleTimetable(c *gin.Context) {
	sc, ok := s.student(c)
	if !ok {
		return
	}
	week, updated := sc.TimetableData()
	if week == nil {
		RespondNotLoaded(c, "timetable not loaded yet")
		return
	}
	RespondSnapshot(c, week, updated)
}

func (s *Service) handleMarks(c *gin.Context) {
	sc, ok := s.student(c)
	if !ok {
		return
	}
	data, updated := sc.MarksSnapshot()
	if data == nil {
		RespondNotLoaded(c, "marks not loaded yet")
		return
	}
	RespondSnapshot(c, data, updated)
}

func (s *Service) handleKomens(c *gin.Context) {
	sc, ok := s.student(c)
	if !ok {
		return
	}
	data, updated := sc.KomensSnapshot()
	if data == nil {
		RespondNotLoaded(c, "messages not loaded yet")
		return
	}
	RespondSnapshot(c, data, updated)
}

func (s *Service) handleSummary(c *gin.Context) {
	sc, ok := s.student(c)
	if !ok {
		return
	}

	if week := c.Query("week"); week != "" {
		wt := summary.WeekType(week)
		switch wt {
		case summary.WeekLast, summary.WeekCurrent, summary.WeekNext:
		default:
			RespondError(c, http.StatusBadRequest, "unknown week: "+week, nil)
			return
		}
		data, found := sc.SummaryFor(wt)
		if !found {
			RespondError(c, http.StatusNotFound, "summary not generated yet", nil)
			return
		}
		RespondSuccess(c, http.StatusOK, data, "")
		return
	}

	all, updated := sc.Summaries()
	if len(all) == 0 {
		RespondNotLoaded(c, "summaries not generated yet")
		return
	}
	RespondSnapshot(c, all, updated)
}

func (s *Service) handlePrepare(c *gin.Context) {
	sc, ok := s.student(c)
	if !ok {
		return
	}

	if period := c.Query("period"); period != "" {
		p := prepare.Period(period)
		switch p {
		case prepare.Today, prepare.Tomorrow:
		default:
			RespondError(c, http.StatusBadRequest, "unknown period: "+period, nil)
			return
		}
		data, found := sc.PrepareFor(p)
		if !found {
			RespondError(c, http.StatusNotFound, "preparation not generated yet", nil)
			return
		}
		RespondSuccess(c, http.StatusOK, data, "")
		return
	}

	all, updated := sc.Prepares()
	if len(all) == 0 {
		RespondNotLoaded(c, "preparations not generated yet")
		return
	}
	RespondSnapshot(c, all, updated)
}

type dashboardPayload struct {
	Name             string                            `json:"name"`
	Timetable        any                               `json:"timetable,omitempty"`
	TimetableUpdated *time.Time                        `json:"timetable_updated,omitempty"`
	Marks            any                               `json:"marks,omitempty"`
	MarksUpdated     *time.Time                        `json:"marks_updated,omitempty"`
	Komens           any                               `json:"komens,omitempty"`
	KomensUpdated    *time.Time                        `json:"komens_updated,omitempty"`
	Summaries        map[summary.WeekType]*summary.Data `json:"summaries,omitempty"`
	Prepares         map[prepare.Period]*prepare.Data   `json:"prepares,omitempty"`
}

func (s *Service) handleDashboard(c *gin.Context) {
	sc, ok := s.student(c)
	if !ok {
		return
	}

	out := dashboardPayload{Name: sc.Name}
	if week, updated := sc.TimetableData(); week != nil {
		out.Timetable = week
		out.TimetableUpdated = &updated
	}
	if data, updated := sc.MarksSnapshot(); data != nil {
		out.Marks = data
		out.MarksUpdated = &updated
	}
	if data, updated := sc.KomensSnapshot(); data != nil {
		out.Komens = data
		out.KomensUpdated = &updated
	}
	if all, _ := sc.Summaries(); len(all) > 0 {
		out.Summaries = all
	}
	if all, _ := sc.Prepares(); len(all) > 0 {
		out.Prepares = all
	}

	RespondSuccess(c, http.StatusOK, out, "")
}

func (s *Service) handleVariables(c *gin.Context) {
	sc, ok := s.student(c)
	if !ok {
		return
	}
	RespondSuccess(c, http.StatusOK, prompt.AvailableVariables(sc), "")
}

func (s *Service) handlePromptResolve(c *gin.Context) {
	sc, ok := s.student(c)
	if !ok {
		return
	}

	var req struct {
		Template string `json:"template"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Template) == "" {
		RespondError(c, http.StatusBadRequest, "template is required", nil)
		return
	}

	text, resolved := prompt.Resolve(req.Template, sc)
	RespondSuccess(c, http.StatusOK, gin.H{
		"text":     text,
		"resolved": resolved,
	}, "")
}

func (s *Service) handleCanteen(c *gin.Context) {
	menu, updated := s.manager.CanteenMenu()
	if menu == nil {
		RespondNotLoaded(c, "canteen menu not loaded yet")
		return
	}
	RespondSnapshot(c, menu, updated)
}

func (s *Service) handleMail(c *gin.Context) {
	repo := s.manager.MailRepo()
	if repo == nil {
		RespondError(c, http.StatusNotFound, "mail storage not configured", nil)
		return
	}
	data, err := repo.AllMessages(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "mail lookup failed", nil)
		return
	}
	RespondSuccess(c, http.StatusOK, gin.H{
		"messages": data.Sorted(),
		"total":    data.TotalCount(),
	}, "")
}

func (s *Service) handleSchedulerAll(c *gin.Context) {
	if s.scheduler == nil {
		RespondError(c, http.StatusNotFound, "scheduler not running", nil)
		return
	}
	RespondSuccess(c, http.StatusOK, s.scheduler.TaskStatuses(), "")
}

// handleSchedulerJob accepts either a full task key ("marks:Anna") or a
// bare job name, which returns that job's status for every student.
func (s *Service) handleSchedulerJob(c *gin.Context) {
	if s.scheduler == nil {
		RespondError(c, http.StatusNotFound, "scheduler not running", nil)
		return
	}

	job := c.Param("job")
	if strings.Contains(job, ":") {
		status, ok := s.scheduler.Status(job)
		if !ok {
			RespondError(c, http.StatusNotFound, "unknown task: "+job, nil)
			return
		}
		RespondSuccess(c, http.StatusOK, status, "")
		return
	}

	matches := map[string]scheduler.TaskStatus{}
	for key, status := range s.scheduler.TaskStatuses() {
		if status.TaskName == job {
			matches[key] = status
		}
	}
	if len(matches) == 0 {
		RespondError(c, http.StatusNotFound, "unknown job: "+job, nil)
		return
	}
	RespondSuccess(c, http.StatusOK, matches, "")
}

// handleReports lists the stored Drive weekly reports, newest first.
func (s *Service) handleReports(c *gin.Context) {
	repo := s.manager.ReportRepo()
	if repo == nil {
		RespondError(c, http.StatusNotFound, "report storage not configured", nil)
		return
	}
	rows, err := repo.AllReports(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "report lookup failed", nil)
		return
	}
	RespondSuccess(c, http.StatusOK, gin.H{
		"reports": rows,
		"total":   len(rows),
	}, "")
}

func (s *Service) handleLogs(c *gin.Context) {
	if s.ring == nil {
		RespondError(c, http.StatusNotFound, "log buffer not available", nil)
		return
	}

	limit := defaultLogLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		limit = n
	}
	offset := 0
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			RespondError(c, http.StatusBadRequest, "invalid offset", nil)
			return
		}
		offset = n
	}

	entries := s.ring.Snapshot(logging.Filter{
		Category: c.Query("category"),
		Level:    c.Query("level"),
	})

	if student := c.Query("student"); student != "" {
		filtered := entries[:0:len(entries)]
		for _, e := range entries {
			if strings.Contains(e.Message, student) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	// Newest first for paging.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	total := len(entries)
	if offset > total {
		offset = total
	}
	entries = entries[offset:]
	if len(entries) > limit {
		entries = entries[:limit]
	}

	RespondSuccess(c, http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"offset":  offset,
	}, "")
}

type systemPayload struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	HostUptimeSec uint64  `json:"host_uptime_seconds"`
	AppUptimeSec  int64   `json:"app_uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	GoVersion     string  `json:"go_version"`
	Students      int     `json:"students"`
}

func (s *Service) handleSystem(c *gin.Context) {
	out := systemPayload{
		AppUptimeSec: int64(time.Since(s.startedAt).Seconds()),
		Goroutines:   runtime.NumGoroutine(),
		GoVersion:    runtime.Version(),
		Students:     len(s.manager.Names()),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		out.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		out.MemoryPercent = vm.UsedPercent
		out.MemoryUsedMB = vm.Used / 1024 / 1024
		out.MemoryTotalMB = vm.Total / 1024 / 1024
	}
	if uptime, err := host.Uptime(); err == nil {
		out.HostUptimeSec = uptime
	}

	RespondSuccess(c, http.StatusOK, out, "")
}

func (s *Service) handleAIUsage(c *gin.Context) {
	gen := s.manager.Generator()
	if gen == nil {
		RespondError(c, http.StatusNotFound, "ai generator not configured", nil)
		return
	}
	RespondSuccess(c, http.StatusOK, gen.Usage(), "")
}

// maskedConfig is the public view of the runtime configuration. Credentials
// and API keys never leave the process.
type maskedConfig struct {
	Server struct {
		IP   string `json:"ip"`
		Port int    `json:"port"`
	} `json:"server"`
	Bakalari struct {
		ServerURL string `json:"server_url"`
	} `json:"bakalari"`
	Students []string `json:"students"`
	AI       struct {
		Selected string `json:"selected"`
		Model    string `json:"model,omitempty"`
	} `json:"ai"`
	GDrive struct {
		Enabled       bool `json:"enabled"`
		MailConfigured bool `json:"mail_configured"`
	} `json:"gdrive"`
	Canteen struct {
		Enabled bool   `json:"enabled"`
		Number  string `json:"number,omitempty"`
	} `json:"canteen"`
	Intervals map[string]int `json:"intervals,omitempty"`
}

func (s *Service) handleConfig(c *gin.Context) {
	var out maskedConfig
	out.Server.IP = s.cfg.Server.IP
	out.Server.Port = s.cfg.Server.Port
	out.Bakalari.ServerURL = s.cfg.Bakalari.ServerURL
	out.Students = s.manager.Names()
	out.AI.Selected = s.cfg.AI.Selected
	if gc, ok := s.cfg.AI.Gemini[s.cfg.AI.Selected]; ok {
		out.AI.Model = gc.Model
	} else if oc, ok := s.cfg.AI.OpenAI[s.cfg.AI.Selected]; ok {
		out.AI.Model = oc.Model
	}
	out.GDrive.Enabled = s.cfg.GDrive.Enabled
	out.GDrive.MailConfigured = s.cfg.GDrive.MailFolderID != ""
	out.Canteen.Enabled = s.cfg.Canteen.Enabled
	out.Canteen.Number = s.cfg.Canteen.Number
	out.Intervals = s.cfg.Scheduler.Intervals

	RespondSuccess(c, http.StatusOK, out, "")
}
