package calendar

import (
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// windowsToIANA translates the zone names Outlook and Exchange write into TZID
var windowsToIANA = map[string]string{
	"Pacific Standard Time":        "America/Los_Angeles",
	"Mountain Standard Time":       "America/Denver",
	"Central Standard Time":        "America/Chicago",
	"Eastern Standard Time":        "America/New_York",
	"Atlantic Standard Time":       "America/Halifax",
	"Alaskan Standard Time":        "America/Anchorage",
	"Hawaiian Standard Time":       "Pacific/Honolulu",
	"GMT Standard Time":            "Europe/London",
	"Central Europe Standard Time": "Europe/Paris",
	"China Standard Time":          "Asia/Shanghai",
	"Tokyo Standard Time":          "Asia/Tokyo",
	"India Standard Time":          "Asia/Kolkata",
	"AUS Eastern Standard Time":    "Australia/Sydney",
}

// startLocation resolves the zone of DTSTART, falling back to loc for floating
// times. A Windows zone name is rewritten in place to its IANA name so the
// start can be parsed.
func startLocation(comp *ical.Component, loc *time.Location) *time.Location {
	dtstart := comp.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return loc
	}
	if tzid := dtstart.Params.Get(ical.ParamTimezoneID); tzid != "" {
		if iana, ok := windowsToIANA[tzid]; ok {
			dtstart.Params.Set(ical.ParamTimezoneID, iana)
			tzid = iana
		}
		if zone, err := time.LoadLocation(tzid); err == nil {
			return zone
		}
		return loc
	}
	if strings.HasSuffix(dtstart.Value, "Z") {
		return time.UTC
	}
	return loc
}
