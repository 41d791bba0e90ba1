package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PolarJunction/AgentOffice/internal/ws"
	"github.com/shirou/gopsutil/v3/process"
)

// listProcesses is replaced in tests.
var listProcesses = process.ProcessesWithContext

// FindGateway scans running processes for the gateway named name and
// reports the matching PIDs. The returned status always carries name.
func FindGateway(ctx context.Context, name string) (ws.GatewayStatus, error) {
	procs, err := listProcesses(ctx)
	if err != nil {
		return ws.GatewayStatus{Name: name}, fmt.Errorf("listing processes: %w", err)
	}

	var pids []int32
	for _, p := range procs {
		// Processes can exit mid-scan; skip the ones we can no longer read.
		exe, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		args, _ := p.CmdlineSliceWithContext(ctx)
		if isGatewayProcess(name, exe, args) {
			pids = append(pids, p.Pid)
		}
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	return ws.GatewayStatus{
		Name:    name,
		Running: len(pids) > 0,
		PIDs:    pids,
	}, nil
}

// isGatewayProcess matches the gateway binary itself or a node process
// running the gateway's entry script.
func isGatewayProcess(name, exe string, args []string) bool {
	if name == "" {
		return false
	}
	if exe == name {
		return true
	}
	if len(args) > 0 && filepath.Base(args[0]) == name {
		return true
	}
	if (exe == "node" || exe == "bun") && len(args) > 1 {
		for _, arg := range args[1:] {
			if strings.Contains(arg, "node_modules/.bin") {
				continue
			}
			if strings.Contains(filepath.Base(arg), name) || strings.Contains(arg, "/"+name+"/") {
				return true
			}
		}
	}
	return false
}
