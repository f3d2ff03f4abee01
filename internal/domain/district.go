package domain

// districts is the ordered list of snow-removal service areas.
var districts = [...]string{
	"中央地区",
	"北部地区",
	"東部地区",
	"西部地区",
	"南部地区",
	"駅前地区",
	"本町地区",
	"新町地区",
	"港地区",
	"浜手地区",
	"山手地区",
	"郊外地区",
}

// DistrictCount is the number of service areas.
const DistrictCount = len(districts)

// Districts returns the service areas in display order. The slice is a copy.
func Districts() []string {
	out := make([]string, DistrictCount)
	copy(out, districts[:])
	return out
}

// IsDistrict reports whether name is one of the service areas.
func IsDistrict(name string) bool {
	return DistrictIndex(name) >= 0
}

// DistrictIndex returns the display position of name, or -1.
func DistrictIndex(name string) int {
	for i, d := range districts {
		if d == name {
			return i
		}
	}
	return -1
}
