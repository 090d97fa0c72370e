package models

import (
	"sort"
	"strings"
)

// GroupState summarizes how many alarms of a group are enabled
type GroupState string

const (
	GroupStateEmpty  GroupState = "Empty"
	GroupStateAllOff GroupState = "AllOff"
	GroupStateAllOn  GroupState = "AllOn"
	GroupStateMixed  GroupState = "Mixed"
)

// AlarmGroup aggregates alarms sharing a group name. It is derived, never persisted.
type AlarmGroup struct {
	Name    string
	Total   int
	Enabled int
}

// State derives the group state from its counts
func (g AlarmGroup) State() GroupState {
	switch {
	case g.Total == 0:
		return GroupStateEmpty
	case g.Enabled == 0:
		return GroupStateAllOff
	case g.Enabled == g.Total:
		return GroupStateAllOn
	default:
		return GroupStateMixed
	}
}

// BuildGroups groups alarms by name, sorted case-insensitively
func BuildGroups(alarms []Alarm) []AlarmGroup {
	byName := make(map[string]*AlarmGroup)
	for _, a := range alarms {
		name := NormalizeGroupName(a.GroupName)
		g, ok := byName[name]
		if !ok {
			g = &AlarmGroup{Name: name}
			byName[name] = g
		}
		g.Total++
		if a.Enabled {
			g.Enabled++
		}
	}

	groups := make([]AlarmGroup, 0, len(byName))
	for _, g := range byName {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return strings.ToLower(groups[i].Name) < strings.ToLower(groups[j].Name)
	})
	return groups
}
