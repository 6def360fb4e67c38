package main

import (
	"os"
	"time"

	"github.com/dogmatiq/jobpack/config"
	"github.com/spf13/pflag"
)

// flags holds the values of the command-line flags that override the
// configuration file.
type flags struct {
	ConfigFile           string
	SubJobs              int
	Nodes                []string
	NodeFile             string
	ProcessorsPerNode    int
	Serial               bool
	Store                string
	PingInterval         time.Duration
	MonitorFailurePolicy string
	Launches             int
	Sleep                time.Duration
	StorePackingInfo     bool
	ListenAddress        string
	LockDir              string
	Debug                bool
}

// bindAllocation adds the flags that describe the allocation to fs.
func (f *flags) bindAllocation(fs *pflag.FlagSet) {
	fs.StringVarP(&f.ConfigFile, "config", "c", "", "path to the configuration file (default: discovered)")
	fs.IntVarP(&f.SubJobs, "sub-jobs", "n", 1, "number of sub-jobs to pack into the allocation")
	fs.StringSliceVar(&f.Nodes, "nodes", nil, "comma-separated list of nodes in the allocation")
	fs.StringVar(&f.NodeFile, "node-file", os.Getenv("PBS_NODEFILE"), "file listing the nodes in the allocation")
	fs.IntVar(&f.ProcessorsPerNode, "ppn", 0, "number of processors on each node (default 24)")
	fs.BoolVar(&f.Serial, "serial", false, "give each sub-job a single processor")
}

// bindRun adds the flags that control the orchestration to fs.
func (f *flags) bindRun(fs *pflag.FlagSet) {
	fs.StringVar(&f.Store, "store", "", "locator of the workflow store (default \"memory:\")")
	fs.DurationVar(&f.PingInterval, "ping-interval", 0, "interval at which running work-items are pinged (default 1h)")
	fs.StringVar(&f.MonitorFailurePolicy, "monitor-failure-policy", "", "behavior when the liveness monitor fails, 'continue' or 'abort'")
	fs.IntVar(&f.Launches, "launches", 0, "work-items executed by each worker, 0 until none remain, -1 forever")
	fs.DurationVar(&f.Sleep, "sleep", 0, "time to wait for new work-items when running forever (default 1m)")
	fs.BoolVar(&f.StorePackingInfo, "store-packing-info", false, "add details of the worker to each result")
	fs.StringVar(&f.ListenAddress, "listen", "", "address of the shared state service (default \"127.0.0.1:0\")")
	fs.StringVar(&f.LockDir, "lock-dir", "", "directory in which the shared lock file is created")
	fs.BoolVar(&f.Debug, "debug", false, "enable debug logging")
}

// load returns the configuration file, with each flag that was set on the
// command-line taking precedence over the file.
func (f *flags) load(fs *pflag.FlagSet) (config.File, error) {
	var file config.File

	path := f.ConfigFile
	if path == "" {
		p, ok, err := config.Discover()
		if err != nil {
			return config.File{}, err
		}
		if ok {
			path = p
		}
	}

	if path != "" {
		var err error
		file, err = config.Load(path)
		if err != nil {
			return config.File{}, err
		}
	}

	if fs.Changed("sub-jobs") || file.SubJobs == 0 {
		file.SubJobs = f.SubJobs
	}

	if fs.Changed("nodes") {
		file.Nodes = f.Nodes
	}

	if fs.Changed("node-file") || (file.NodeFile == "" && len(file.Nodes) == 0) {
		file.NodeFile = f.NodeFile
	}

	if fs.Changed("ppn") {
		file.ProcessorsPerNode = f.ProcessorsPerNode
	}

	if fs.Changed("serial") {
		file.Serial = f.Serial
	}

	if fs.Changed("store") {
		file.Store = f.Store
	}

	if fs.Changed("ping-interval") {
		file.PingInterval = config.Duration(f.PingInterval)
	}

	if fs.Changed("monitor-failure-policy") {
		file.MonitorFailurePolicy = f.MonitorFailurePolicy
	}

	if fs.Changed("launches") {
		file.Launches = f.Launches
	}

	if fs.Changed("sleep") {
		file.Sleep = config.Duration(f.Sleep)
	}

	if fs.Changed("store-packing-info") {
		file.StorePackingInfo = f.StorePackingInfo
	}

	if fs.Changed("listen") {
		file.ListenAddress = f.ListenAddress
	}

	if fs.Changed("lock-dir") {
		file.LockDir = f.LockDir
	}

	if fs.Changed("debug") {
		file.Debug = f.Debug
	}

	return file, nil
}
