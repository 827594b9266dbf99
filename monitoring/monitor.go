// Package monitoring turns a host application into a web server that
// exposes the live state of its allocation dispatchers.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/sarchlab/shiba/alloc"
	"github.com/sarchlab/shiba/monitoring/web"
	"github.com/sarchlab/shiba/tracing"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor runs a dashboard server that allows external inspection of the
// allocation dispatchers registered with it.
type Monitor struct {
	portNumber  int
	url         string
	dispatchers []*alloc.Dispatcher
	siteStats   map[string]*tracing.SiteStats

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		siteStats: make(map[string]*tracing.SiteStats),
	}
}

// WithPortNumber sets the port number of the monitor. Port 0 picks a free
// port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterDispatcher registers a dispatcher to be monitored.
func (m *Monitor) RegisterDispatcher(d *alloc.Dispatcher) {
	m.dispatchers = append(m.dispatchers, d)
}

// RegisterSiteStats attaches a per-call-site aggregation to the
// dispatcher's entry on the dashboard. The aggregation must already be
// hooked onto the dispatcher.
func (m *Monitor) RegisterSiteStats(d *alloc.Dispatcher, s *tracing.SiteStats) {
	m.siteStats[d.Name()] = s
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars)-1)
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// StartServer starts the monitor as a web server with a custom port if
// wanted.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	fs := web.GetAssets()
	fServer := http.FileServer(fs)
	r.HandleFunc("/api/dispatchers", m.listDispatchers)
	r.HandleFunc("/api/dispatcher/{name}", m.listDispatcherDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/stats/{name}", m.listStats)
	r.HandleFunc("/api/sites/{name}", m.listSites)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(fServer)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber != 0 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring dispatchers with %s\n", m.url)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

// URL returns the address of the dashboard. It is empty before StartServer
// runs.
func (m *Monitor) URL() string {
	return m.url
}

// OpenDashboard opens the dashboard in the default browser. StartServer
// must run first.
func (m *Monitor) OpenDashboard() {
	if m.url == "" {
		panic("monitor server is not started")
	}

	err := browser.OpenURL(m.url)
	dieOnErr(err)
}

func (m *Monitor) listDispatchers(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "[")
	for i, d := range m.dispatchers {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "\"%s\"", d.Name())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) listDispatcherDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	dispatcher := m.findDispatcherOr404(w, name)
	if dispatcher == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(dispatcher)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	DispatcherName string `json:"dispatcher_name,omitempty"`
	FieldName      string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		dieOnErr(err)
	}

	fields := strings.Split(req.FieldName, ".")

	dispatcher := m.findDispatcherOr404(w, req.DispatcherName)
	if dispatcher == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(dispatcher)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(fields)
	dieOnErr(err)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) listStats(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	dispatcher := m.findDispatcherOr404(w, name)
	if dispatcher == nil {
		return
	}

	bytes, err := json.Marshal(dispatcher.Stats())
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) listSites(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	stats := m.findSiteStatsOr404(w, name)
	if stats == nil {
		return
	}

	sortMethod, limit, offset, err := m.sitesParseParams(r)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	rows := sortAndSelectSites(stats.Snapshot(), sortMethod, limit, offset)

	bytes, err := json.Marshal(rows)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (*Monitor) sitesParseParams(
	r *http.Request,
) (sort string, limit, offset int, err error) {
	sortMethod := r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "bytes"
	}
	if sortMethod != "bytes" && sortMethod != "allocations" {
		errStr := fmt.Sprintf(
			"Invalid sort method: %s. "+
				"Allowed values are `bytes` and `allocations`",
			sortMethod)
		return "", 0, 0, errors.New(errStr)
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "0"
	}
	limitNumber, err := strconv.Atoi(limitStr)
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offsetStr := r.URL.Query().Get("offset")
	if offsetStr == "" {
		offsetStr = "0"
	}
	offsetNumber, err := strconv.Atoi(offsetStr)
	if err != nil {
		return sortMethod, limitNumber, 0, err
	}

	return sortMethod, limitNumber, offsetNumber, nil
}

// sortAndSelectSites pages through site rows. Limit 0 means no limit.
func sortAndSelectSites(
	rows []tracing.SiteRow,
	sortMethod string,
	limit, offset int,
) []tracing.SiteRow {
	switch sortMethod {
	case "bytes":
		// Snapshot order.
	case "allocations":
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].Allocations != rows[j].Allocations {
				return rows[i].Allocations > rows[j].Allocations
			}

			return rows[i].Bytes > rows[j].Bytes
		})
	default:
		panic("Invalid sort method " + sortMethod)
	}

	if offset > len(rows) {
		offset = len(rows)
	}
	rows = rows[offset:]

	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	return rows
}

func (m *Monitor) findDispatcherOr404(
	w http.ResponseWriter,
	name string,
) *alloc.Dispatcher {
	var dispatcher *alloc.Dispatcher
	for _, d := range m.dispatchers {
		if d.Name() == name {
			dispatcher = d
		}
	}

	if dispatcher == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Dispatcher not found"))
		dieOnErr(err)
	}

	return dispatcher
}

func (m *Monitor) findSiteStatsOr404(
	w http.ResponseWriter,
	name string,
) *tracing.SiteStats {
	stats := m.siteStats[name]

	if stats == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Site stats not found"))
		dieOnErr(err)
	}

	return stats
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bytes, err := json.Marshal(m.progressBars)
	m.progressBarsLock.Unlock()
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
