// Package monitoring serves the state of address spaces and MMUs over HTTP.
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
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/sarchlab/kmem/mem/vm"
	"github.com/sarchlab/kmem/mem/vm/addrspace"
	"github.com/sarchlab/kmem/mem/vm/mmu"
	"github.com/sarchlab/kmem/mem/vm/tlb"
	"github.com/sarchlab/kmem/tracing"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor exposes registered address spaces and MMUs through a REST API. The
// monitor only reads; callers must not establish or release a registered
// address space while requests are being served.
type Monitor struct {
	lock          sync.Mutex
	addressSpaces []*addrspace.Descriptor
	mmus          []*mmu.Comp
	eventCounter  *tracing.EventCounter
	portNumber    int

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

// RegisterAddressSpace registers an address space to be monitored.
func (m *Monitor) RegisterAddressSpace(d *addrspace.Descriptor) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.addressSpaces = append(m.addressSpaces, d)
}

// RegisterMMU registers an MMU whose TLB statistics are reported.
func (m *Monitor) RegisterMMU(c *mmu.Comp) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.mmus = append(m.mmus, c)
}

// RegisterEventCounter sets the counter reported by /api/events.
func (m *Monitor) RegisterEventCounter(c *tracing.EventCounter) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.eventCounter = c
}

// Handler returns the router that serves the monitoring API.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_address_spaces", m.listAddressSpaces)
	r.HandleFunc("/api/address_space/{name}", m.addressSpaceDetails)
	r.HandleFunc("/api/page_table/{name}/{table}", m.pageTable)
	r.HandleFunc("/api/translate/{name}/{vaddr}", m.translate)
	r.HandleFunc("/api/tlb", m.listTLBs)
	r.HandleFunc("/api/events", m.listEvents)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts serving the monitoring API in the background and
// returns the port it listens on.
func (m *Monitor) StartServer() int {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	port := listener.Addr().(*net.TCPAddr).Port

	fmt.Fprintf(os.Stderr,
		"Monitoring address spaces with http://localhost:%d\n", port)

	go func() {
		err := http.Serve(listener, m.Handler())
		dieOnErr(err)
	}()

	return port
}

func (m *Monitor) listAddressSpaces(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := make([]string, 0, len(m.addressSpaces))
	for _, d := range m.addressSpaces {
		names = append(names, d.Name())
	}
	m.lock.Unlock()

	writeJSON(w, names)
}

func (m *Monitor) addressSpaceDetails(w http.ResponseWriter, r *http.Request) {
	d := m.findAddressSpaceOr404(w, mux.Vars(r)["name"])
	if d == nil {
		return
	}

	snapshot := addressSpaceSnapshot{
		Name:              d.Name(),
		Established:       d.IsEstablished(),
		TextStartAddress:  d.TextStartAddress(),
		TextSize:          d.TextSize(),
		DataStartAddress:  d.DataStartAddress(),
		DataSize:          d.DataSize(),
		StackStartAddress: d.StackStartAddress(),
		StackSize:         d.StackSize(),
		TableArrayAddress: d.TableArrayAddress(),
	}

	if tables := d.PageTables(); tables != nil {
		for i := range tables.Tables {
			snapshot.MappedPages += tables.Tables[i].NumPresent()
		}
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type addressSpaceSnapshot struct {
	Name              string
	Established       bool
	TextStartAddress  uint64
	TextSize          uint64
	DataStartAddress  uint64
	DataSize          uint64
	StackStartAddress uint64
	StackSize         uint64
	TableArrayAddress uint64
	MappedPages       int
}

type entryRsp struct {
	Slot     int    `json:"slot"`
	Frame    uint64 `json:"frame"`
	Writable bool   `json:"writable"`
}

func (m *Monitor) pageTable(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	d := m.findAddressSpaceOr404(w, vars["name"])
	if d == nil {
		return
	}

	tableIndex, err := strconv.Atoi(vars["table"])
	if err != nil || tableIndex < 0 || tableIndex >= vm.TablesPerProcess {
		httpError(w, http.StatusBadRequest,
			fmt.Sprintf("table must be in [0, %d)", vm.TablesPerProcess))
		return
	}

	tables := d.PageTables()
	if tables == nil {
		httpError(w, http.StatusNotFound, "address space owns no page tables")
		return
	}

	entries := []entryRsp{}
	for slot, pte := range tables.Tables[tableIndex].Entries {
		if !pte.Present {
			continue
		}

		entries = append(entries, entryRsp{
			Slot:     slot,
			Frame:    uint64(pte.Frame),
			Writable: pte.Writable,
		})
	}

	writeJSON(w, entries)
}

type translateRsp struct {
	VirtualAddress  uint64 `json:"virtual_address"`
	PhysicalAddress uint64 `json:"physical_address"`
	Frame           uint64 `json:"frame"`
	Writable        bool   `json:"writable"`
}

func (m *Monitor) translate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	d := m.findAddressSpaceOr404(w, vars["name"])
	if d == nil {
		return
	}

	vAddr, err := strconv.ParseUint(vars["vaddr"], 0, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	tables := d.PageTables()
	if tables == nil {
		httpError(w, http.StatusNotFound, "address space owns no page tables")
		return
	}

	pte, err := tables.Lookup(vAddr)

	switch {
	case errors.Is(err, vm.ErrAddressOutOfRange):
		httpError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		httpError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, translateRsp{
		VirtualAddress:  vAddr,
		PhysicalAddress: pte.Frame.Address() | vAddr&(vm.PageSize-1),
		Frame:           uint64(pte.Frame),
		Writable:        pte.Writable,
	})
}

type tlbRsp struct {
	MMU     string    `json:"mmu"`
	TLB     string    `json:"tlb"`
	Reloads uint64    `json:"reloads"`
	Stats   tlb.Stats `json:"stats"`
}

func (m *Monitor) listTLBs(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	rsp := make([]tlbRsp, 0, len(m.mmus))
	for _, c := range m.mmus {
		rsp = append(rsp, tlbRsp{
			MMU:     c.Name(),
			TLB:     c.TLB().Name(),
			Reloads: c.NumReloads(),
			Stats:   c.TLB().Stats(),
		})
	}
	m.lock.Unlock()

	writeJSON(w, rsp)
}

func (m *Monitor) listEvents(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	counter := m.eventCounter
	m.lock.Unlock()

	if counter == nil {
		writeJSON(w, map[string]uint64{})
		return
	}

	writeJSON(w, counter.Counts())
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

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		httpError(w, http.StatusConflict, err.Error())
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func (m *Monitor) findAddressSpaceOr404(
	w http.ResponseWriter,
	name string,
) *addrspace.Descriptor {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, d := range m.addressSpaces {
		if d.Name() == name {
			return d
		}
	}

	httpError(w, http.StatusNotFound, "Address space not found")

	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_, err := w.Write([]byte(msg))
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
