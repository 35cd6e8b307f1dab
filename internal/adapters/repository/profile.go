package repository

import "context"

// Profile describes the dog whose diagnoses are stored.
type Profile struct {
	Name  string `json:"name"`
	Breed string `json:"breed"`
	Age   string `json:"age"`
	// Photo is a base64 encoded image, nil when no photo is set.
	Photo *string `json:"photo_base64"`
}

// Profile defaults, used until a field is set and when a field is set to
// the empty string.
const (
	DefaultProfileName  = "Boksil"
	DefaultProfileBreed = "Maltese"
	DefaultProfileAge   = "3 years"
)

// DefaultProfile returns the profile reported before any update.
func DefaultProfile() Profile {
	return Profile{
		Name:  DefaultProfileName,
		Breed: DefaultProfileBreed,
		Age:   DefaultProfileAge,
	}
}

// ProfilePatch is a partial profile update. Nil fields are left unchanged.
type ProfilePatch struct {
	Name  *string
	Breed *string
	Age   *string
	Photo *string
	// ClearPhoto removes the photo. It wins over Photo.
	ClearPhoto bool
}

// Apply returns p with the patch applied.
func (pp ProfilePatch) Apply(p Profile) Profile {
	if pp.Name != nil {
		p.Name = orDefault(*pp.Name, DefaultProfileName)
	}
	if pp.Breed != nil {
		p.Breed = orDefault(*pp.Breed, DefaultProfileBreed)
	}
	if pp.Age != nil {
		p.Age = orDefault(*pp.Age, DefaultProfileAge)
	}
	switch {
	case pp.ClearPhoto:
		p.Photo = nil
	case pp.Photo != nil:
		photo := *pp.Photo
		p.Photo = &photo
	}
	return p
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ProfileStore holds the single pet profile.
type ProfileStore interface {
	// Profile returns the stored profile, or DefaultProfile when none was
	// saved.
	Profile(ctx context.Context) (Profile, error)

	// UpdateProfile applies patch atomically and returns the result.
	UpdateProfile(ctx context.Context, patch ProfilePatch) (Profile, error)
}
