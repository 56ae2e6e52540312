// Package store implements the embedded single-file persistence layer:
// schema init, pooled reader/writer handles, and upsert-on-conflict
// helpers for every entity in the data model.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rshield/rshield/internal/errs"
	"github.com/rshield/rshield/internal/model"
)

// Store wraps two *sql.DB handles against the same sqlite file: one
// writer connection (serialized, WAL-mode) and a multi-connection
// reader pool. Long reads never block writers and vice versa.
type Store struct {
	writer *sql.DB
	reader *sql.DB
}

// Open creates (or reopens) the embedded database at path, running
// idempotent schema migration.
func Open(path string) (*Store, error) {
	writer, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, "open writer", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&mode=ro")
	if err != nil {
		writer.Close()
		return nil, errs.Wrap(errs.Persistence, "open reader", err)
	}
	reader.SetMaxOpenConns(8)

	s := &Store{writer: writer, reader: reader}
	if err := s.migrate(); err != nil {
		writer.Close()
		reader.Close()
		return nil, errs.Wrap(errs.Persistence, "migrate", err)
	}
	log.Printf("[store] opened %s", path)
	return s, nil
}

// Close releases both handles.
func (s *Store) Close() error {
	rerr := s.reader.Close()
	werr := s.writer.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Writer exposes the single writer handle for callers (e.g. the
// orchestrator) that need to batch several statements in one
// transaction.
func (s *Store) Writer() *sql.DB { return s.writer }

// Reader exposes the pooled reader handle.
func (s *Store) Reader() *sql.DB { return s.reader }

func now() int64 { return time.Now().Unix() }

const schema = `
CREATE TABLE IF NOT EXISTS scan_task (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	monitor_enabled INTEGER NOT NULL DEFAULT 0,
	running_status TEXT NOT NULL DEFAULT 'wait',
	next_run_time INTEGER NOT NULL DEFAULT 0,
	last_run_time INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rootdomain (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	domain TEXT NOT NULL,
	task_name TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(domain, task_id)
);

CREATE TABLE IF NOT EXISTS domain (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	domain TEXT NOT NULL,
	source_tag TEXT,
	a TEXT,
	cname TEXT,
	ns TEXT,
	mx TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(domain, task_id)
);

CREATE TABLE IF NOT EXISTS ips (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	ip_addr TEXT NOT NULL,
	domain_id INTEGER,
	port_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(ip_addr, domain_id)
);

CREATE TABLE IF NOT EXISTS port (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ip_id INTEGER NOT NULL,
	task_id INTEGER NOT NULL,
	port INTEGER NOT NULL,
	service TEXT,
	version TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(ip_id, port)
);

CREATE TABLE IF NOT EXISTS website (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	url TEXT NOT NULL UNIQUE,
	base_url TEXT,
	favicon_hash TEXT,
	title TEXT,
	status_code INTEGER,
	headers TEXT,
	fingerprints TEXT,
	screenshot TEXT,
	tags TEXT,
	ssl_info TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS api (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	method TEXT,
	uri TEXT NOT NULL,
	url TEXT,
	ufrom TEXT NOT NULL,
	http_status INTEGER,
	handle_status TEXT NOT NULL DEFAULT 'untriaged',
	get_response TEXT,
	post_response TEXT,
	get_body_length INTEGER,
	post_body_length INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(uri, ufrom)
);

CREATE TABLE IF NOT EXISTS webcomp (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	website TEXT NOT NULL,
	comp_name TEXT NOT NULL,
	comp_version TEXT,
	ctype TEXT,
	category TEXT,
	confidence INTEGER,
	created_at INTEGER NOT NULL,
	UNIQUE(comp_name, website)
);

CREATE TABLE IF NOT EXISTS risk (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	risk_name TEXT NOT NULL,
	risk_type TEXT,
	level TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	detail TEXT NOT NULL,
	response_snippet TEXT,
	source_tag TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(task_id, detail)
);

CREATE TABLE IF NOT EXISTS cregex (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	pattern TEXT NOT NULL,
	kind TEXT,
	enabled INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS plugins (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	version TEXT,
	description TEXT,
	author TEXT,
	severity TEXT,
	refs TEXT,
	params TEXT,
	result_fields TEXT,
	script TEXT,
	status TEXT NOT NULL DEFAULT 'enabled',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(type, name)
);

CREATE TABLE IF NOT EXISTS config (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	dns_brute_enabled INTEGER NOT NULL DEFAULT 1,
	dns_plugin_enabled INTEGER NOT NULL DEFAULT 1,
	port_scan_plugin_enabled INTEGER NOT NULL DEFAULT 1,
	fingerprint_plugin_enabled INTEGER NOT NULL DEFAULT 1,
	risk_scan_plugin_enabled INTEGER NOT NULL DEFAULT 1,
	proxy TEXT,
	user_agent TEXT,
	http_headers TEXT,
	http_timeout INTEGER,
	thread_num INTEGER,
	subdomain_dict TEXT,
	file_dict TEXT,
	subdomain_level INTEGER NOT NULL DEFAULT 3,
	is_buildin INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS bruteforce_task (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	target TEXT NOT NULL,
	port INTEGER NOT NULL,
	protocol TEXT NOT NULL,
	usernames TEXT,
	passwords TEXT,
	threads INTEGER NOT NULL DEFAULT 1,
	timeout INTEGER NOT NULL DEFAULT 10,
	created_at INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending'
);

CREATE TABLE IF NOT EXISTS bruteforce_result (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	target TEXT NOT NULL,
	protocol TEXT NOT NULL,
	username TEXT NOT NULL,
	password TEXT NOT NULL,
	time_taken_ms INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
`

func (s *Store) migrate() error {
	if _, err := s.writer.Exec(schema); err != nil {
		return err
	}
	var n int
	if err := s.writer.QueryRow(`SELECT count(*) FROM config`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		d := model.DefaultCoreConfig()
		if err := s.SaveConfig(&d); err != nil {
			return fmt.Errorf("seed default config: %w", err)
		}
	}
	return nil
}

func marshalList(v []string) string {
	if len(v) == 0 {
		return ""
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// --- ScanTask ---------------------------------------------------------

// CreateTask inserts a new ScanTask in wait status.
func (s *Store) CreateTask(name string, monitorEnabled bool) (int64, error) {
	ts := now()
	res, err := s.writer.Exec(
		`INSERT INTO scan_task (name, monitor_enabled, running_status, next_run_time, last_run_time, created_at, updated_at)
		 VALUES (?, ?, ?, 0, 0, ?, ?)`,
		name, boolToInt(monitorEnabled), model.StatusWait, ts, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	return res.LastInsertId()
}

// GetTaskList returns every ScanTask.
func (s *Store) GetTaskList() ([]model.ScanTask, error) {
	rows, err := s.reader.Query(`SELECT id, name, monitor_enabled, running_status, next_run_time, last_run_time, created_at, updated_at FROM scan_task ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("get task list: %w", err)
	}
	defer rows.Close()

	var out []model.ScanTask
	for rows.Next() {
		var t model.ScanTask
		var monitorEnabled int
		if err := rows.Scan(&t.ID, &t.Name, &monitorEnabled, &t.RunningStatus, &t.NextRunTime, &t.LastRunTime, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		t.MonitorEnabled = monitorEnabled != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetMonitoredTasks returns only tasks with monitor_enabled = true —
// the set the orchestrator schedules.
func (s *Store) GetMonitoredTasks() ([]model.ScanTask, error) {
	all, err := s.GetTaskList()
	if err != nil {
		return nil, err
	}
	var out []model.ScanTask
	for _, t := range all {
		if t.MonitorEnabled {
			out = append(out, t)
		}
	}
	return out, nil
}

// SwitchTaskStatus toggles a task's monitor_enabled flag.
func (s *Store) SwitchTaskStatus(id int64, enabled bool) error {
	_, err := s.writer.Exec(`UPDATE scan_task SET monitor_enabled = ?, updated_at = ? WHERE id = ?`, boolToInt(enabled), now(), id)
	return err
}

// DeleteTask removes a ScanTask and every RootDomain it owns.
func (s *Store) DeleteTask(id int64) error {
	tx, err := s.writer.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM rootdomain WHERE task_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM scan_task WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// SetTaskStatus transitions a task's running_status; externally
// observable the moment this call returns (spec §4.1 contract).
func (s *Store) SetTaskStatus(id int64, status model.ScanTaskStatus) error {
	_, err := s.writer.Exec(`UPDATE scan_task SET running_status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
	return err
}

// SaveNextRunTime updates a task's schedule bookkeeping.
func (s *Store) SaveNextRunTime(id int64, nextRun, lastRun int64) error {
	_, err := s.writer.Exec(`UPDATE scan_task SET next_run_time = ?, last_run_time = ?, updated_at = ? WHERE id = ?`, nextRun, lastRun, now(), id)
	return err
}

// --- RootDomain ---------------------------------------------------------

// AddRootDomain inserts a RootDomain; on a (domain, task_id) conflict it
// updates the existing row's task_name and updated_at instead.
func (s *Store) AddRootDomain(taskID int64, domain, taskName string) (int64, error) {
	ts := now()
	res, err := s.writer.Exec(
		`INSERT INTO rootdomain (task_id, domain, task_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(domain, task_id) DO UPDATE SET task_name = excluded.task_name, updated_at = excluded.updated_at`,
		taskID, domain, taskName, ts, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("add root domain: %w", err)
	}
	return res.LastInsertId()
}

// GetRootDomains returns every RootDomain owned by a task.
func (s *Store) GetRootDomains(taskID int64) ([]model.RootDomain, error) {
	rows, err := s.reader.Query(`SELECT id, task_id, domain, task_name, created_at, updated_at FROM rootdomain WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get root domains: %w", err)
	}
	defer rows.Close()
	var out []model.RootDomain
	for rows.Next() {
		var rd model.RootDomain
		if err := rows.Scan(&rd.ID, &rd.TaskID, &rd.Domain, &rd.TaskName, &rd.CreatedAt, &rd.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

// DeleteRootDomain removes one RootDomain by id.
func (s *Store) DeleteRootDomain(id int64) error {
	_, err := s.writer.Exec(`DELETE FROM rootdomain WHERE id = ?`, id)
	return err
}

// --- Domain ---------------------------------------------------------

// UpsertDomains persists a batch of discovered subdomains in a single
// transaction; duplicates on (domain, task_id) are silently merged
// (spec §4.1 stage 5 / §8 idempotence law).
func (s *Store) UpsertDomains(taskID int64, domains []model.Domain) error {
	if len(domains) == 0 {
		return nil
	}
	tx, err := s.writer.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO domain (task_id, domain, source_tag, a, cname, ns, mx, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, task_id) DO UPDATE SET
			source_tag = excluded.source_tag,
			a = excluded.a, cname = excluded.cname, ns = excluded.ns, mx = excluded.mx,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	ts := now()
	for _, d := range domains {
		if _, err := stmt.Exec(taskID, d.Domain, d.SourceTag,
			marshalList(d.A), marshalList(d.CNAME), marshalList(d.NS), marshalList(d.MX), ts, ts); err != nil {
			return fmt.Errorf("upsert domain %s: %w", d.Domain, err)
		}
	}
	return tx.Commit()
}

// GetDomains returns every Domain owned by a task.
func (s *Store) GetDomains(taskID int64) ([]model.Domain, error) {
	rows, err := s.reader.Query(`SELECT id, task_id, domain, source_tag, a, cname, ns, mx, created_at, updated_at FROM domain WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get domains: %w", err)
	}
	defer rows.Close()
	var out []model.Domain
	for rows.Next() {
		var d model.Domain
		var a, c, n, m string
		if err := rows.Scan(&d.ID, &d.TaskID, &d.Domain, &d.SourceTag, &a, &c, &n, &m, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.A, d.CNAME, d.NS, d.MX = unmarshalList(a), unmarshalList(c), unmarshalList(n), unmarshalList(m)
		out = append(out, d)
	}
	return out, rows.Err()
}

// AddDomain inserts a single Domain (UI/manual-add path).
func (s *Store) AddDomain(d model.Domain) (int64, error) {
	if err := s.UpsertDomains(d.TaskID, []model.Domain{d}); err != nil {
		return 0, err
	}
	var id int64
	err := s.reader.QueryRow(`SELECT id FROM domain WHERE task_id = ? AND domain = ?`, d.TaskID, d.Domain).Scan(&id)
	return id, err
}

// DeleteDomain removes one Domain by id.
func (s *Store) DeleteDomain(id int64) error {
	_, err := s.writer.Exec(`DELETE FROM domain WHERE id = ?`, id)
	return err
}

// --- IP / Port ---------------------------------------------------------

// UpsertIP inserts or updates an IP row, returning its id.
func (s *Store) UpsertIP(ip model.IP) (int64, error) {
	ts := now()
	_, err := s.writer.Exec(`
		INSERT INTO ips (task_id, ip_addr, domain_id, port_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip_addr, domain_id) DO UPDATE SET port_count = excluded.port_count, updated_at = excluded.updated_at
	`, ip.TaskID, ip.IPAddr, ip.DomainID, ip.PortCount, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("upsert ip: %w", err)
	}
	var id int64
	err = s.reader.QueryRow(`SELECT id FROM ips WHERE ip_addr = ? AND domain_id IS ?`, ip.IPAddr, ip.DomainID).Scan(&id)
	return id, err
}

// GetIPs returns every IP owned by a task.
func (s *Store) GetIPs(taskID int64) ([]model.IP, error) {
	rows, err := s.reader.Query(`SELECT id, task_id, ip_addr, domain_id, port_count, created_at, updated_at FROM ips WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get ips: %w", err)
	}
	defer rows.Close()
	var out []model.IP
	for rows.Next() {
		var ip model.IP
		if err := rows.Scan(&ip.ID, &ip.TaskID, &ip.IPAddr, &ip.DomainID, &ip.PortCount, &ip.CreatedAt, &ip.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ip)
	}
	return out, rows.Err()
}

// UpsertPorts persists discovered ports for an IP in one transaction.
func (s *Store) UpsertPorts(taskID, ipID int64, ports []model.Port) error {
	if len(ports) == 0 {
		return nil
	}
	tx, err := s.writer.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO port (ip_id, task_id, port, service, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip_id, port) DO UPDATE SET service = excluded.service, version = excluded.version, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	ts := now()
	for _, p := range ports {
		if _, err := stmt.Exec(ipID, taskID, p.Port, p.Service, p.Version, ts, ts); err != nil {
			return fmt.Errorf("upsert port %d: %w", p.Port, err)
		}
	}
	if _, err := tx.Exec(`UPDATE ips SET port_count = ? WHERE id = ?`, len(ports), ipID); err != nil {
		return err
	}
	return tx.Commit()
}

// GetPortsForIP returns every discovered port for one IP.
func (s *Store) GetPortsForIP(ipID int64) ([]model.Port, error) {
	rows, err := s.reader.Query(`SELECT id, ip_id, task_id, port, service, version, created_at, updated_at FROM port WHERE ip_id = ? ORDER BY port`, ipID)
	if err != nil {
		return nil, fmt.Errorf("get ports for ip: %w", err)
	}
	defer rows.Close()
	var out []model.Port
	for rows.Next() {
		var p model.Port
		if err := rows.Scan(&p.ID, &p.IPID, &p.TaskID, &p.Port, &p.Service, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Website / API / WebComponent ---------------------------------------------------------

// UpsertWebsite persists a probed Website, keyed by URL.
func (s *Store) UpsertWebsite(w model.Website) (int64, error) {
	ts := now()
	headers, _ := json.Marshal(w.Headers)
	_, err := s.writer.Exec(`
		INSERT INTO website (task_id, url, base_url, favicon_hash, title, status_code, headers, fingerprints, screenshot, tags, ssl_info, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			favicon_hash = excluded.favicon_hash, title = excluded.title, status_code = excluded.status_code,
			headers = excluded.headers, fingerprints = excluded.fingerprints, screenshot = excluded.screenshot,
			tags = excluded.tags, ssl_info = excluded.ssl_info, updated_at = excluded.updated_at
	`, w.TaskID, w.URL, w.BaseURL, w.FaviconHash, w.Title, w.StatusCode, string(headers),
		marshalList(w.Fingerprints), w.Screenshot, marshalList(w.Tags), w.SSLInfo, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("upsert website: %w", err)
	}
	var id int64
	err = s.reader.QueryRow(`SELECT id FROM website WHERE url = ?`, w.URL).Scan(&id)
	return id, err
}

// GetWebsites returns every Website owned by a task.
func (s *Store) GetWebsites(taskID int64) ([]model.Website, error) {
	rows, err := s.reader.Query(`SELECT id, task_id, url, base_url, favicon_hash, title, status_code, headers, fingerprints, screenshot, tags, ssl_info, created_at, updated_at FROM website WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get websites: %w", err)
	}
	defer rows.Close()
	var out []model.Website
	for rows.Next() {
		var w model.Website
		var headers, fp, tags string
		if err := rows.Scan(&w.ID, &w.TaskID, &w.URL, &w.BaseURL, &w.FaviconHash, &w.Title, &w.StatusCode, &headers, &fp, &w.Screenshot, &tags, &w.SSLInfo, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(headers), &w.Headers)
		w.Fingerprints, w.Tags = unmarshalList(fp), unmarshalList(tags)
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteWebsite removes one Website by id.
func (s *Store) DeleteWebsite(id int64) error {
	_, err := s.writer.Exec(`DELETE FROM website WHERE id = ?`, id)
	return err
}

// UpsertWebComponent persists one fingerprint hit, keyed by (comp_name, website).
func (s *Store) UpsertWebComponent(c model.WebComponent) error {
	_, err := s.writer.Exec(`
		INSERT INTO webcomp (task_id, website, comp_name, comp_version, ctype, category, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(comp_name, website) DO UPDATE SET comp_version = excluded.comp_version, confidence = excluded.confidence
	`, c.TaskID, c.Website, c.CompName, c.CompVer, c.CType, c.Category, c.Confidence, now())
	return err
}

// GetWebComponents returns every WebComponent owned by a task.
func (s *Store) GetWebComponents(taskID int64) ([]model.WebComponent, error) {
	rows, err := s.reader.Query(`SELECT id, task_id, website, comp_name, comp_version, ctype, category, confidence, created_at FROM webcomp WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get webcomps: %w", err)
	}
	defer rows.Close()
	var out []model.WebComponent
	for rows.Next() {
		var c model.WebComponent
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Website, &c.CompName, &c.CompVer, &c.CType, &c.Category, &c.Confidence, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertAPI persists a discovered endpoint, truncating captures to the
// spec §8 10 KiB bound, keyed by (uri, ufrom).
func (s *Store) UpsertAPI(a model.API) (int64, error) {
	a.GetResponse = truncateCapture(a.GetResponse)
	a.PostResponse = truncateCapture(a.PostResponse)
	ts := now()
	if a.HandleStatus == "" {
		a.HandleStatus = model.APIUntriaged
	}
	_, err := s.writer.Exec(`
		INSERT INTO api (task_id, method, uri, url, ufrom, http_status, handle_status, get_response, post_response, get_body_length, post_body_length, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri, ufrom) DO UPDATE SET
			http_status = excluded.http_status, get_response = excluded.get_response, post_response = excluded.post_response,
			get_body_length = excluded.get_body_length, post_body_length = excluded.post_body_length, updated_at = excluded.updated_at
	`, a.TaskID, a.Method, a.URI, a.URL, a.UFrom, a.HTTPStatus, a.HandleStatus, a.GetResponse, a.PostResponse,
		len(a.GetResponse), len(a.PostResponse), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("upsert api: %w", err)
	}
	var id int64
	err = s.reader.QueryRow(`SELECT id FROM api WHERE uri = ? AND ufrom = ?`, a.URI, a.UFrom).Scan(&id)
	return id, err
}

func truncateCapture(s string) string {
	if len(s) > model.MaxCapturedBodyBytes {
		return s[:model.MaxCapturedBodyBytes]
	}
	return s
}

// GetAPIs returns APIs for a task, optionally filtered by handle_status
// (empty string = no filter). filter must belong to the allowlist the
// caller enforces (spec §8 boundary behavior).
func (s *Store) GetAPIs(taskID int64, handleStatus string) ([]model.API, error) {
	q := `SELECT id, task_id, method, uri, url, ufrom, http_status, handle_status, get_response, post_response, get_body_length, post_body_length, created_at, updated_at FROM api WHERE task_id = ?`
	args := []any{taskID}
	if handleStatus != "" {
		q += ` AND handle_status = ?`
		args = append(args, handleStatus)
	}
	q += ` ORDER BY id`
	rows, err := s.reader.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("get apis: %w", err)
	}
	defer rows.Close()
	var out []model.API
	for rows.Next() {
		var a model.API
		if err := rows.Scan(&a.ID, &a.TaskID, &a.Method, &a.URI, &a.URL, &a.UFrom, &a.HTTPStatus, &a.HandleStatus,
			&a.GetResponse, &a.PostResponse, &a.GetBodyLength, &a.PostBodyLength, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ProcessAPIs bulk-updates handle_status for a set of API ids.
func (s *Store) ProcessAPIs(ids []int64, status model.APIHandleStatus) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.writer.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`UPDATE api SET handle_status = ?, updated_at = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	ts := now()
	for _, id := range ids {
		if _, err := stmt.Exec(status, ts, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- Risk ---------------------------------------------------------

// AddRisk persists a finding, keyed by (task_id, detail) for dedup.
func (s *Store) AddRisk(r model.Risk) (int64, error) {
	ts := now()
	if r.Status == "" {
		r.Status = model.RiskOpen
	}
	_, err := s.writer.Exec(`
		INSERT INTO risk (task_id, risk_name, risk_type, level, status, detail, response_snippet, source_tag, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id, detail) DO NOTHING
	`, r.TaskID, r.RiskName, r.RiskType, r.Level, r.Status, r.Detail, r.ResponseSnippet, r.SourceTag, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("add risk: %w", err)
	}
	var id int64
	err = s.reader.QueryRow(`SELECT id FROM risk WHERE task_id = ? AND detail = ?`, r.TaskID, r.Detail).Scan(&id)
	return id, err
}

// GetRisks returns every Risk owned by a task.
func (s *Store) GetRisks(taskID int64) ([]model.Risk, error) {
	rows, err := s.reader.Query(`SELECT id, task_id, risk_name, risk_type, level, status, detail, response_snippet, source_tag, created_at, updated_at FROM risk WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get risks: %w", err)
	}
	defer rows.Close()
	var out []model.Risk
	for rows.Next() {
		var r model.Risk
		if err := rows.Scan(&r.ID, &r.TaskID, &r.RiskName, &r.RiskType, &r.Level, &r.Status, &r.Detail, &r.ResponseSnippet, &r.SourceTag, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRisks drops every persisted Risk for a task, implementing the
// clear_scan_vulnerabilities command-surface operation. It leaves scan
// counters untouched — those live in internal/passivescan, not here.
func (s *Store) DeleteRisks(taskID int64) error {
	_, err := s.writer.Exec(`DELETE FROM risk WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("delete risks: %w", err)
	}
	return nil
}

// --- Config / Regex ---------------------------------------------------------

// GetConfig loads the single CoreConfig row.
func (s *Store) GetConfig() (*model.CoreConfig, error) {
	var c model.CoreConfig
	var headers string
	err := s.reader.QueryRow(`
		SELECT dns_brute_enabled, dns_plugin_enabled, port_scan_plugin_enabled, fingerprint_plugin_enabled,
		       risk_scan_plugin_enabled, proxy, user_agent, http_headers, http_timeout, thread_num,
		       subdomain_dict, file_dict, subdomain_level, is_buildin
		FROM config WHERE id = 1
	`).Scan(&c.DNSBruteEnabled, &c.DNSPluginEnabled, &c.PortScanPluginEnabled, &c.FingerprintPluginEnabled,
		&c.RiskScanPluginEnabled, &c.Proxy, &c.UserAgent, &headers, &c.HTTPTimeout, &c.ThreadNum,
		&c.SubdomainDict, &c.FileDict, &c.SubdomainLevel, &c.IsBuiltin)
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	json.Unmarshal([]byte(headers), &c.HTTPHeaders)
	return &c, nil
}

// SaveConfig upserts the single CoreConfig row.
func (s *Store) SaveConfig(c *model.CoreConfig) error {
	headers, _ := json.Marshal(c.HTTPHeaders)
	_, err := s.writer.Exec(`
		INSERT INTO config (id, dns_brute_enabled, dns_plugin_enabled, port_scan_plugin_enabled, fingerprint_plugin_enabled,
			risk_scan_plugin_enabled, proxy, user_agent, http_headers, http_timeout, thread_num,
			subdomain_dict, file_dict, subdomain_level, is_buildin)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			dns_brute_enabled = excluded.dns_brute_enabled, dns_plugin_enabled = excluded.dns_plugin_enabled,
			port_scan_plugin_enabled = excluded.port_scan_plugin_enabled, fingerprint_plugin_enabled = excluded.fingerprint_plugin_enabled,
			risk_scan_plugin_enabled = excluded.risk_scan_plugin_enabled, proxy = excluded.proxy, user_agent = excluded.user_agent,
			http_headers = excluded.http_headers, http_timeout = excluded.http_timeout, thread_num = excluded.thread_num,
			subdomain_dict = excluded.subdomain_dict, file_dict = excluded.file_dict,
			subdomain_level = excluded.subdomain_level, is_buildin = excluded.is_buildin
	`, c.DNSBruteEnabled, c.DNSPluginEnabled, c.PortScanPluginEnabled, c.FingerprintPluginEnabled,
		c.RiskScanPluginEnabled, c.Proxy, c.UserAgent, string(headers), c.HTTPTimeout, c.ThreadNum,
		c.SubdomainDict, c.FileDict, c.SubdomainLevel, c.IsBuiltin)
	return err
}

// AddRegex inserts a new sensitive-data pattern.
func (s *Store) AddRegex(r model.Regex) (int64, error) {
	res, err := s.writer.Exec(`INSERT INTO cregex (name, pattern, kind, enabled) VALUES (?, ?, ?, ?)`, r.Name, r.Pattern, r.Kind, boolToInt(r.Enabled))
	if err != nil {
		return 0, fmt.Errorf("add regex: %w", err)
	}
	return res.LastInsertId()
}

// UpdateRegex overwrites an existing pattern by id.
func (s *Store) UpdateRegex(r model.Regex) error {
	_, err := s.writer.Exec(`UPDATE cregex SET name = ?, pattern = ?, kind = ? WHERE id = ?`, r.Name, r.Pattern, r.Kind, r.ID)
	return err
}

// SwitchRegexStatus toggles a pattern's enabled flag.
func (s *Store) SwitchRegexStatus(id int64, enabled bool) error {
	_, err := s.writer.Exec(`UPDATE cregex SET enabled = ? WHERE id = ?`, boolToInt(enabled), id)
	return err
}

// DeleteRegex removes a pattern by id.
func (s *Store) DeleteRegex(id int64) error {
	_, err := s.writer.Exec(`DELETE FROM cregex WHERE id = ?`, id)
	return err
}

// GetRegexes returns every configured pattern.
func (s *Store) GetRegexes() ([]model.Regex, error) {
	rows, err := s.reader.Query(`SELECT id, name, pattern, kind, enabled FROM cregex ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("get regexes: %w", err)
	}
	defer rows.Close()
	var out []model.Regex
	for rows.Next() {
		var r model.Regex
		var enabled int
		if err := rows.Scan(&r.ID, &r.Name, &r.Pattern, &r.Kind, &enabled); err != nil {
			return nil, err
		}
		r.Enabled = enabled != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Plugins ---------------------------------------------------------

// UpsertPlugin saves a plugin's manifest + script, keyed by (type, name).
func (s *Store) UpsertPlugin(p model.Plugin) (int64, error) {
	ts := now()
	refs, _ := json.Marshal(p.References)
	params, _ := json.Marshal(p.Params)
	resultFields, _ := json.Marshal(p.ResultFields)
	if p.Status == "" {
		p.Status = model.PluginEnabled
	}
	_, err := s.writer.Exec(`
		INSERT INTO plugins (name, type, version, description, author, severity, refs, params, result_fields, script, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, name) DO UPDATE SET
			version = excluded.version, description = excluded.description, author = excluded.author,
			severity = excluded.severity, refs = excluded.refs, params = excluded.params,
			result_fields = excluded.result_fields, script = excluded.script, status = excluded.status, updated_at = excluded.updated_at
	`, p.Name, p.Type, p.Version, p.Description, p.Author, p.Severity, string(refs), string(params), string(resultFields), p.Script, p.Status, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("upsert plugin: %w", err)
	}
	var id int64
	err = s.reader.QueryRow(`SELECT id FROM plugins WHERE type = ? AND name = ?`, p.Type, p.Name).Scan(&id)
	return id, err
}

// GetPlugin returns one plugin by (type, name).
func (s *Store) GetPlugin(pluginType model.PluginType, name string) (*model.Plugin, error) {
	plugins, err := s.listPlugins(`WHERE type = ? AND name = ?`, pluginType, name)
	if err != nil || len(plugins) == 0 {
		return nil, err
	}
	return &plugins[0], nil
}

// ListPlugins returns all plugins of a given type (empty type = all).
func (s *Store) ListPlugins(pluginType model.PluginType) ([]model.Plugin, error) {
	if pluginType == "" {
		return s.listPlugins(``)
	}
	return s.listPlugins(`WHERE type = ?`, pluginType)
}

func (s *Store) listPlugins(where string, args ...any) ([]model.Plugin, error) {
	q := `SELECT id, name, type, version, description, author, severity, refs, params, result_fields, script, status, created_at, updated_at FROM plugins ` + where + ` ORDER BY id`
	rows, err := s.reader.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	defer rows.Close()
	var out []model.Plugin
	for rows.Next() {
		var p model.Plugin
		var refs, params, resultFields string
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.Version, &p.Description, &p.Author, &p.Severity,
			&refs, &params, &resultFields, &p.Script, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(refs), &p.References)
		json.Unmarshal([]byte(params), &p.Params)
		json.Unmarshal([]byte(resultFields), &p.ResultFields)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePlugin removes a plugin's DB row by (type, name).
func (s *Store) DeletePlugin(pluginType model.PluginType, name string) error {
	_, err := s.writer.Exec(`DELETE FROM plugins WHERE type = ? AND name = ?`, pluginType, name)
	return err
}

// --- BruteForce ---------------------------------------------------------

// CreateBruteForceTask inserts a new brute-force campaign in pending status.
func (s *Store) CreateBruteForceTask(t model.BruteForceTask) (int64, error) {
	res, err := s.writer.Exec(`
		INSERT INTO bruteforce_task (name, target, port, protocol, usernames, passwords, threads, timeout, created_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Name, t.Target, t.Port, t.Protocol, marshalList(t.Usernames), marshalList(t.Passwords), t.Threads, t.Timeout, now(), model.BruteForcePending)
	if err != nil {
		return 0, fmt.Errorf("create bruteforce task: %w", err)
	}
	return res.LastInsertId()
}

// GetBruteForceTask returns a single campaign by ID, or nil if absent.
func (s *Store) GetBruteForceTask(id int64) (*model.BruteForceTask, error) {
	var t model.BruteForceTask
	var u, p string
	err := s.reader.QueryRow(`SELECT id, name, target, port, protocol, usernames, passwords, threads, timeout, created_at, status FROM bruteforce_task WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Target, &t.Port, &t.Protocol, &u, &p, &t.Threads, &t.Timeout, &t.CreatedAt, &t.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bruteforce task: %w", err)
	}
	t.Usernames, t.Passwords = unmarshalList(u), unmarshalList(p)
	return &t, nil
}

// GetBruteForceTasks returns every brute-force campaign.
func (s *Store) GetBruteForceTasks() ([]model.BruteForceTask, error) {
	rows, err := s.reader.Query(`SELECT id, name, target, port, protocol, usernames, passwords, threads, timeout, created_at, status FROM bruteforce_task ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("get bruteforce tasks: %w", err)
	}
	defer rows.Close()
	var out []model.BruteForceTask
	for rows.Next() {
		var t model.BruteForceTask
		var u, p string
		if err := rows.Scan(&t.ID, &t.Name, &t.Target, &t.Port, &t.Protocol, &u, &p, &t.Threads, &t.Timeout, &t.CreatedAt, &t.Status); err != nil {
			return nil, err
		}
		t.Usernames, t.Passwords = unmarshalList(u), unmarshalList(p)
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetBruteForceStatus transitions a campaign's status field; the
// driver re-reads this before every attempt (spec §4.7).
func (s *Store) SetBruteForceStatus(id int64, status model.BruteForceStatus) error {
	_, err := s.writer.Exec(`UPDATE bruteforce_task SET status = ? WHERE id = ?`, status, id)
	return err
}

// GetBruteForceStatus reads back the current status for a campaign.
func (s *Store) GetBruteForceStatus(id int64) (model.BruteForceStatus, error) {
	var status model.BruteForceStatus
	err := s.reader.QueryRow(`SELECT status FROM bruteforce_task WHERE id = ?`, id).Scan(&status)
	return status, err
}

// DeleteBruteForceTask removes a campaign and its results.
func (s *Store) DeleteBruteForceTask(id int64) error {
	tx, err := s.writer.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM bruteforce_result WHERE task_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM bruteforce_task WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// AddBruteForceResult persists one successful credential pair. Callers
// never pass failures — the caller-side contract is "only call this on
// success" (spec §8: success == true always).
func (s *Store) AddBruteForceResult(r model.BruteForceResult) error {
	_, err := s.writer.Exec(`
		INSERT INTO bruteforce_result (task_id, target, protocol, username, password, time_taken_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.TaskID, r.Target, r.Protocol, r.Username, r.Password, r.TimeTakenMs, now())
	return err
}

// GetBruteForceResults returns every successful credential found for a task.
func (s *Store) GetBruteForceResults(taskID int64) ([]model.BruteForceResult, error) {
	rows, err := s.reader.Query(`SELECT task_id, target, protocol, username, password, time_taken_ms, created_at FROM bruteforce_result WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get bruteforce results: %w", err)
	}
	defer rows.Close()
	var out []model.BruteForceResult
	for rows.Next() {
		var r model.BruteForceResult
		if err := rows.Scan(&r.TaskID, &r.Target, &r.Protocol, &r.Username, &r.Password, &r.TimeTakenMs, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Success = true
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
