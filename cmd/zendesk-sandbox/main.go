// Command zendesk-sandbox serves a local fake of the Zendesk custom objects
// API on top of the in-memory mocks, so HTTP-mode clients can be exercised
// without an account. It prints the environment exports to point a client
// at it.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mercuryfield/zenorm_go/internal/devseed"
	"github.com/mercuryfield/zenorm_go/pkg/files"
	"github.com/mercuryfield/zenorm_go/pkg/records"
	"github.com/mercuryfield/zenorm_go/pkg/schema"
)

type sandboxConfig struct {
	Addr    string `yaml:"addr"`
	Seed    string `yaml:"seed"`
	Latency string `yaml:"latency"`
	Fail    string `yaml:"fail"`
}

type failConfig struct {
	rate float64
	code int
}

func main() {
	addr := flag.String("addr", ":8091", "listen address")
	seedPath := flag.String("seed", "", "path to JSON seed with objects and records")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	configPath := flag.String("config", "", "path to YAML config (flags override it)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if *configPath != "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		applyDefault(addr, cfg.Addr, ":8091")
		applyDefault(seedPath, cfg.Seed, "")
		applyDefault(fail, cfg.Fail, "")
		if *latency == 0 && cfg.Latency != "" {
			d, err := time.ParseDuration(cfg.Latency)
			if err != nil {
				log.Fatalf("parse latency %q: %v", cfg.Latency, err)
			}
			*latency = d
		}
	}

	recordsMock := records.NewMockBackend()
	schemaMock := schema.NewMockBackend(schema.WithDefinitionObserver(recordsMock.RegisterObject))
	filesMock := files.NewMockBackend()

	if *seedPath != "" {
		seed, err := devseed.Load(*seedPath)
		if err != nil {
			log.Fatalf("load seed: %v", err)
		}
		if err := schemaMock.SeedObjects(seed.Objects); err != nil {
			log.Fatalf("apply object seed: %v", err)
		}
		if err := recordsMock.Seed(seed.Records); err != nil {
			log.Fatalf("apply record seed: %v", err)
		}
	}

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		log.Fatalf("parse fail flag: %v", err)
	}

	srv := &sandbox{schema: schemaMock, records: recordsMock, files: filesMock, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /custom_objects", srv.listObjects)
	mux.HandleFunc("POST /custom_objects", srv.createObject)
	mux.HandleFunc("GET /custom_objects/{key}", srv.getObject)
	mux.HandleFunc("DELETE /custom_objects/{key}", srv.deleteObject)
	mux.HandleFunc("GET /custom_objects/{key}/fields", srv.listFields)
	mux.HandleFunc("POST /custom_objects/{key}/fields", srv.createField)
	mux.HandleFunc("GET /custom_objects/{key}/records", srv.listRecords)
	mux.HandleFunc("POST /custom_objects/{key}/records", srv.createRecord)
	mux.HandleFunc("GET /custom_objects/{key}/records/count", srv.countRecords)
	mux.HandleFunc("GET /custom_objects/{key}/records/search", srv.searchRecords)
	mux.HandleFunc("POST /custom_objects/{key}/records/search", srv.filterRecords)
	mux.HandleFunc("GET /custom_objects/{key}/records/{id}", srv.getRecord)
	mux.HandleFunc("PATCH /custom_objects/{key}/records/{id}", srv.updateRecord)
	mux.HandleFunc("DELETE /custom_objects/{key}/records/{id}", srv.deleteRecord)
	mux.HandleFunc("POST /uploads.json", srv.upload)
	mux.HandleFunc("DELETE /uploads/{token}", srv.deleteUpload)
	mux.HandleFunc("GET /attachments/{id}", srv.getAttachment)
	mux.HandleFunc("PUT /tickets/{id}", srv.attachToTicket)

	server := &http.Server{
		Addr:    *addr,
		Handler: withMiddleware(*latency, failCfg, log, mux),
	}

	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	log.Infof("zendesk-sandbox listening on %s", *addr)
	fmt.Println()
	fmt.Println("export ZENORM_RUNTIME_MODE=http")
	fmt.Printf("export ZENDESK_BASE_URL=http://%s\n", host)
	fmt.Println("export ZENDESK_EMAIL=sandbox@example.com")
	fmt.Println("export ZENDESK_API_TOKEN=sandbox")
	fmt.Println()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}

func loadConfig(path string) (*sandboxConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg sandboxConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefault copies the config value into the flag when the flag still
// holds its default.
func applyDefault(flagVal *string, configVal, def string) {
	if *flagVal == def && configVal != "" {
		*flagVal = configVal
	}
}

func withMiddleware(delay time.Duration, failCfg failConfig, log *zap.SugaredLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Infow("request", "method", r.Method, "path", r.URL.Path)
		if delay > 0 {
			time.Sleep(delay)
		}
		if failCfg.rate > 0 && rand.Float64() < failCfg.rate {
			status := failCfg.code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			writeError(w, status, "FailureInjected", "failure injected")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return failConfig{}, err
			}
			cfg.rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return failConfig{}, err
			}
			cfg.code = val
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}

type sandbox struct {
	schema  *schema.MockBackend
	records *records.MockBackend
	files   *files.MockBackend
	log     *zap.SugaredLogger
}

// Wire shapes matching the Zendesk envelopes the clients expect.

type wireFieldOption struct {
	Name    string `json:"name"`
	RawName string `json:"raw_name"`
	Value   string `json:"value"`
}

type wireField struct {
	Key                    string            `json:"key"`
	Title                  string            `json:"title"`
	Type                   schema.FieldType  `json:"type"`
	RegexpForValidation    string            `json:"regexp_for_validation,omitempty"`
	RelationshipTargetType string            `json:"relationship_target_type,omitempty"`
	CustomFieldOptions     []wireFieldOption `json:"custom_field_options,omitempty"`
}

func fieldToWire(f schema.Field) wireField {
	wf := wireField{
		Key:                 f.Key,
		Title:               f.Title,
		Type:                f.Type,
		RegexpForValidation: f.Pattern,
	}
	if f.Type == schema.TypeLookup {
		wf.RelationshipTargetType = f.RelationshipTargetType()
	}
	for _, c := range f.Choices {
		wf.CustomFieldOptions = append(wf.CustomFieldOptions, wireFieldOption{Name: c.Label, RawName: c.Label, Value: c.Value})
	}
	return wf
}

func fieldFromWire(wf wireField) schema.Field {
	f := schema.Field{Key: wf.Key, Title: wf.Title, Type: wf.Type, Pattern: wf.RegexpForValidation}
	if target, ok := strings.CutPrefix(wf.RelationshipTargetType, "zen:custom_object:"); ok {
		f.Target = target
	}
	for _, opt := range wf.CustomFieldOptions {
		f.Choices = append(f.Choices, schema.Choice{Value: opt.Value, Label: opt.Name})
	}
	return f
}

func (s *sandbox) listObjects(w http.ResponseWriter, r *http.Request) {
	objects, err := s.schema.ListObjects(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"custom_objects": objects})
}

func (s *sandbox) createObject(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CustomObject struct {
			Key             string `json:"key"`
			Title           string `json:"title"`
			TitlePluralized string `json:"title_pluralized"`
			Description     string `json:"description"`
		} `json:"custom_object"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidPayload", err.Error())
		return
	}
	def := &schema.Definition{
		Key:             payload.CustomObject.Key,
		Title:           payload.CustomObject.Title,
		TitlePluralized: payload.CustomObject.TitlePluralized,
		Description:     payload.CustomObject.Description,
	}
	obj, err := s.schema.CreateObject(r.Context(), def)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"custom_object": obj})
}

func (s *sandbox) getObject(w http.ResponseWriter, r *http.Request) {
	obj, err := s.schema.GetObject(r.Context(), r.PathValue("key"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"custom_object": obj})
}

func (s *sandbox) deleteObject(w http.ResponseWriter, r *http.Request) {
	if err := s.schema.DeleteObject(r.Context(), r.PathValue("key")); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *sandbox) listFields(w http.ResponseWriter, r *http.Request) {
	fields, err := s.schema.ListFields(r.Context(), r.PathValue("key"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	wire := make([]wireField, 0, len(fields))
	for _, f := range fields {
		wire = append(wire, fieldToWire(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"custom_object_fields": wire})
}

func (s *sandbox) createField(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CustomObjectField wireField `json:"custom_object_field"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidPayload", err.Error())
		return
	}
	field, err := s.schema.CreateField(r.Context(), r.PathValue("key"), fieldFromWire(payload.CustomObjectField))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"custom_object_field": fieldToWire(*field)})
}

func decodeRecordPayload(r *http.Request) (*records.RecordPayload, error) {
	var payload struct {
		CustomObjectRecord struct {
			Name       *string        `json:"name"`
			ExternalID string         `json:"external_id"`
			Fields     map[string]any `json:"custom_object_fields"`
		} `json:"custom_object_record"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &records.RecordPayload{
		Name:       payload.CustomObjectRecord.Name,
		ExternalID: payload.CustomObjectRecord.ExternalID,
		Fields:     payload.CustomObjectRecord.Fields,
	}, nil
}

func (s *sandbox) createRecord(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeRecordPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidPayload", err.Error())
		return
	}
	rec, err := s.records.CreateRecord(r.Context(), r.PathValue("key"), payload)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"custom_object_record": rec})
}

func (s *sandbox) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.GetRecord(r.Context(), r.PathValue("key"), r.PathValue("id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"custom_object_record": rec})
}

func (s *sandbox) updateRecord(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeRecordPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidPayload", err.Error())
		return
	}
	rec, err := s.records.UpdateRecord(r.Context(), r.PathValue("key"), r.PathValue("id"), payload)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"custom_object_record": rec})
}

func (s *sandbox) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.records.DeleteRecord(r.Context(), r.PathValue("key"), r.PathValue("id")); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func listOptionsFromQuery(r *http.Request) *records.ListOptions {
	q := r.URL.Query()
	opts := &records.ListOptions{
		Sort:   q.Get("sort"),
		Cursor: q.Get("page[after]"),
	}
	if raw := q.Get("page[size]"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			opts.PageSize = n
		}
	}
	if raw := q.Get("filter[external_ids]"); raw != "" {
		opts.ExternalIDs = strings.Split(raw, ",")
	}
	return opts
}

func writeRecordPage(w http.ResponseWriter, res *records.ListResult) {
	writeJSON(w, http.StatusOK, map[string]any{
		"custom_object_records": res.Records,
		"meta": map[string]any{
			"has_more":     res.HasMore,
			"after_cursor": res.AfterCursor,
		},
	})
}

func (s *sandbox) listRecords(w http.ResponseWriter, r *http.Request) {
	res, err := s.records.ListRecords(r.Context(), r.PathValue("key"), listOptionsFromQuery(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeRecordPage(w, res)
}

func (s *sandbox) searchRecords(w http.ResponseWriter, r *http.Request) {
	res, err := s.records.SearchRecords(r.Context(), r.PathValue("key"), r.URL.Query().Get("query"), nil, listOptionsFromQuery(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeRecordPage(w, res)
}

func (s *sandbox) filterRecords(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Filter map[string]any `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidPayload", err.Error())
		return
	}
	res, err := s.records.SearchRecords(r.Context(), r.PathValue("key"), "", payload.Filter, listOptionsFromQuery(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeRecordPage(w, res)
}

func (s *sandbox) countRecords(w http.ResponseWriter, r *http.Request) {
	n, err := s.records.CountRecords(r.Context(), r.PathValue("key"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": map[string]any{
			"value":        n,
			"refreshed_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *sandbox) upload(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "InvalidPayload", "filename query parameter is required")
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidPayload", err.Error())
		return
	}
	up, err := s.files.Upload(r.Context(), filename, r.Header.Get("Content-Type"), r.URL.Query().Get("token"), data)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"upload": up})
}

func (s *sandbox) deleteUpload(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSuffix(r.PathValue("token"), ".json")
	if err := s.files.DeleteUpload(r.Context(), token); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *sandbox) getAttachment(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSuffix(r.PathValue("id"), ".json")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidPayload", "bad attachment id")
		return
	}
	att, err := s.files.GetAttachment(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachment": att})
}

func (s *sandbox) attachToTicket(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSuffix(r.PathValue("id"), ".json")
	ticketID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidPayload", "bad ticket id")
		return
	}
	var payload struct {
		Ticket struct {
			Comment struct {
				Body    string   `json:"body"`
				Public  *bool    `json:"public"`
				Uploads []string `json:"uploads"`
			} `json:"comment"`
		} `json:"ticket"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidPayload", err.Error())
		return
	}
	c := payload.Ticket.Comment
	if err := s.files.AttachToTicket(r.Context(), ticketID, c.Body, c.Public, c.Uploads); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket": map[string]any{"id": ticketID}})
}

// writeMappedError translates mock errors into Zendesk-shaped error bodies.
func writeMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, records.ErrUniqueName):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":       "RecordInvalid",
			"description": "Record validation errors",
			"details": map[string]any{
				"base": []map[string]string{{
					"description": "Name already exists. Try another one.",
					"error":       "DuplicateValue",
				}},
			},
		})
	case errors.Is(err, records.ErrNotFound), errors.Is(err, schema.ErrNotFound), errors.Is(err, files.ErrNotFound):
		writeError(w, http.StatusNotFound, "RecordNotFound", err.Error())
	case errors.Is(err, records.ErrBadRequest), errors.Is(err, schema.ErrBadDefinition):
		writeError(w, http.StatusBadRequest, "InvalidPayload", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{"error": code, "description": description})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are already written; nothing sensible left to do.
		_ = err
	}
}
