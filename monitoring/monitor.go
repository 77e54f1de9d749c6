// Package monitoring turns a running device model into a web server that
// reports registers, FIFO levels and flags, and lets a user pause and resume
// the engine.
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
	"github.com/sarchlab/regslave/device"
	"github.com/sarchlab/regslave/monitoring/web"
	"github.com/sarchlab/regslave/sim/id"
	"github.com/sarchlab/regslave/sim/timing"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// A Device is something the monitor can report on.
type Device interface {
	Name() string
	Snapshot() device.Snapshot
}

// Monitor can turn a device model into a server and allows external
// monitoring and controlling of it.
type Monitor struct {
	engine     timing.Engine
	devices    []Device
	portNumber int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	profileDuration time.Duration
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
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

// RegisterEngine registers the engine that drives the devices.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// RegisterDevice registers a device to be monitored.
func (m *Monitor) RegisterDevice(d Device) {
	m.devices = append(m.devices, d)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        id.Generate(),
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

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/registers/{name}", m.listRegisters)
	r.HandleFunc("/api/fifos", m.listFIFOs)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("monitor: listen on %s: %w", actualPort, err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring device with %s\n", url)

	go func() {
		err := http.Serve(listener, m.Router())
		dieOnErr(err)
	}()

	return url, nil
}

func (m *Monitor) engineOr503(w http.ResponseWriter) timing.Engine {
	if m.engine == nil {
		http.Error(w, "No engine registered", http.StatusServiceUnavailable)
	}

	return m.engine
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	if e := m.engineOr503(w); e != nil {
		e.Pause()
	}
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	if e := m.engineOr503(w); e != nil {
		e.Continue()
	}
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	e := m.engineOr503(w)
	if e == nil {
		return
	}

	fmt.Fprintf(w, "{\"now\":%d}", e.CurrentTime())
}

func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	e := m.engineOr503(w)
	if e == nil {
		return
	}

	go func() {
		if err := e.Run(); err != nil {
			log.Printf("monitor: engine stopped: %v", err)
		}
	}()
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.devices))
	for _, d := range m.devices {
		names = append(names, d.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	d := m.findDeviceOr404(w, mux.Vars(r)["name"])
	if d == nil {
		return
	}

	snapshot := d.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(2)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d := m.findDeviceOr404(w, req.CompName)
	if d == nil {
		return
	}

	snapshot := d.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type registerRsp struct {
	Name    string `json:"name"`
	Index   uint8  `json:"index"`
	Address uint32 `json:"address"`
	Access  string `json:"access"`
	Value   uint32 `json:"value"`
}

func (m *Monitor) listRegisters(w http.ResponseWriter, r *http.Request) {
	d := m.findDeviceOr404(w, mux.Vars(r)["name"])
	if d == nil {
		return
	}

	regs := d.Snapshot().Registers
	rsp := make([]registerRsp, 0, len(regs))
	for _, reg := range regs {
		rsp = append(rsp, registerRsp{
			Name:    reg.Name,
			Index:   reg.Index,
			Address: reg.Address(),
			Access:  reg.Access.String(),
			Value:   reg.Value,
		})
	}

	writeJSON(w, rsp)
}

type fifoLevel struct {
	Name     string `json:"fifo"`
	Level    int    `json:"level"`
	Capacity int    `json:"cap"`
}

func (f fifoLevel) percent() float64 {
	if f.Capacity == 0 {
		return 0
	}

	return float64(f.Level) / float64(f.Capacity)
}

func (m *Monitor) listFIFOs(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := fifosParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	writeJSON(w, selectFIFOs(m.fifoLevels(), sortMethod, limit, offset))
}

func (m *Monitor) fifoLevels() []fifoLevel {
	var levels []fifoLevel

	for _, d := range m.devices {
		s := d.Snapshot()
		levels = append(levels,
			fifoLevel{
				Name:     d.Name() + ".RxFIFO",
				Level:    s.Flow.RxCount,
				Capacity: s.InboundDepth,
			},
			fifoLevel{
				Name:     d.Name() + ".TxFIFO",
				Level:    s.OutboundDepth - s.Flow.TxFree,
				Capacity: s.OutboundDepth,
			})
	}

	return levels
}

func fifosParseParams(
	r *http.Request,
) (sortMethod string, limit, offset int, err error) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s. Allowed values are `level` and `percent`",
			sortMethod)
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return "", 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return "", 0, 0, err
	}

	if limit < 0 || offset < 0 {
		return "", 0, 0, errors.New("limit and offset must not be negative")
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}

	return n, nil
}

// selectFIFOs sorts the levels and returns the page selected by offset and
// limit. A zero limit selects everything after offset.
func selectFIFOs(
	levels []fifoLevel,
	sortMethod string,
	limit, offset int,
) []fifoLevel {
	sorted := make([]fifoLevel, len(levels))
	copy(sorted, levels)

	switch sortMethod {
	case "level":
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Level != sorted[j].Level {
				return sorted[i].Level > sorted[j].Level
			}

			return sorted[i].percent() > sorted[j].percent()
		})
	case "percent":
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].percent() != sorted[j].percent() {
				return sorted[i].percent() > sorted[j].percent()
			}

			return sorted[i].Level > sorted[j].Level
		})
	default:
		panic("invalid sort method " + sortMethod)
	}

	if offset > len(sorted) {
		offset = len(sorted)
	}

	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return sorted[offset:end]
}

func (m *Monitor) findDeviceOr404(w http.ResponseWriter, name string) Device {
	for _, d := range m.devices {
		if d.Name() == name {
			return d
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
