package models

// Location is a branch where an appointment can take place
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var Locations = []Location{
	{ID: "hanoi", Name: "Hà Nội"},
	{ID: "hcm", Name: "Thành phố Hồ Chí Minh"},
	{ID: "danang", Name: "Đà Nẵng"},
}

func LookupLocation(id string) (Location, bool) {
	for _, l := range Locations {
		if l.ID == id {
			return l, true
		}
	}
	return Location{}, false
}
