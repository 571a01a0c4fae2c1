package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mmynk/cameratogether/internal/groupapi"
	"github.com/mmynk/cameratogether/internal/models"
)

var t0 = time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return t0 }

func httpErr(code int) error {
	return &groupapi.HTTPError{StatusCode: code, Body: http.StatusText(code)}
}

// fakeAPI is an in-memory Group API enforcing the same rules as the server.
type fakeAPI struct {
	mu      sync.Mutex
	seq     int
	groups  map[string]*models.Group
	members map[string]models.Members
	photos  map[string][]models.Photo
	calls   []string
	fail    map[string]error

	// gate, when set, blocks CreateGroup until closed.
	gate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		groups:  make(map[string]*models.Group),
		members: make(map[string]models.Members),
		photos:  make(map[string][]models.Photo),
		fail:    make(map[string]error),
	}
}

func (f *fakeAPI) enter(op string) error {
	f.calls = append(f.calls, op)
	if err, ok := f.fail[op]; ok {
		delete(f.fail, op)
		return err
	}
	return nil
}

func (f *fakeAPI) failNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeAPI) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeAPI) allCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) byToken(token string) *models.Group {
	for _, g := range f.groups {
		if g.InvitationToken == token {
			return g
		}
	}
	return nil
}

func (f *fakeAPI) addMember(g *models.Group, userID string, owner bool) {
	f.members[g.ID] = append(f.members[g.ID], models.Member{
		ID:       fmt.Sprintf("M-%s-%s", g.ID, userID),
		GroupID:  g.ID,
		UserID:   userID,
		IsOwner:  owner,
		JoinedAt: t0,
	})
}

// joinDirect simulates another device joining.
func (f *fakeAPI) joinDirect(groupID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.groups[groupID]
	if err := g.AddMember(t0); err != nil {
		return err
	}
	f.addMember(g, userID, false)
	return nil
}

func (f *fakeAPI) deleteDirect(groupID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups, groupID)
	delete(f.members, groupID)
}

func (f *fakeAPI) CreateGroup(ctx context.Context, in groupapi.CreateGroupInput) (*models.Group, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateGroup"); err != nil {
		return nil, err
	}
	g, err := models.NewGroup(in.OwnerUserID, in.Name, in.Kind, t0)
	if err != nil {
		return nil, httpErr(http.StatusBadRequest)
	}
	f.seq++
	g.ID = fmt.Sprintf("G%d", f.seq)
	g.InvitationToken = "tok-" + g.ID
	g.AddMember(t0)
	f.groups[g.ID] = g
	f.addMember(g, in.OwnerUserID, true)
	cp := *g
	return &cp, nil
}

func (f *fakeAPI) ListGroups(ctx context.Context, ownerUserID string, limit, offset int) ([]models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListGroups"); err != nil {
		return nil, err
	}
	var out []models.Group
	for _, g := range f.groups {
		if g.OwnerUserID == ownerUserID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeAPI) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetGroup"); err != nil {
		return nil, err
	}
	g, ok := f.groups[groupID]
	if !ok {
		return nil, httpErr(http.StatusNotFound)
	}
	cp := *g
	return &cp, nil
}

func (f *fakeAPI) GetGroupByInvitation(ctx context.Context, token string) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetGroupByInvitation"); err != nil {
		return nil, err
	}
	g := f.byToken(token)
	if g == nil {
		return nil, httpErr(http.StatusNotFound)
	}
	cp := *g
	return &cp, nil
}

func (f *fakeAPI) JoinGroup(ctx context.Context, token, userID string) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("JoinGroup"); err != nil {
		return nil, err
	}
	g := f.byToken(token)
	if g == nil {
		return nil, httpErr(http.StatusNotFound)
	}
	if f.members[g.ID].Contains(userID) {
		return nil, httpErr(http.StatusConflict)
	}
	if err := g.AddMember(t0); err != nil {
		return nil, httpErr(http.StatusBadRequest)
	}
	f.addMember(g, userID, false)
	cp := *g
	return &cp, nil
}

func (f *fakeAPI) ListMembers(ctx context.Context, groupID string) (models.Members, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListMembers"); err != nil {
		return nil, err
	}
	if _, ok := f.groups[groupID]; !ok {
		return nil, httpErr(http.StatusNotFound)
	}
	return f.members[groupID].Clone(), nil
}

func (f *fakeAPI) FinalizeGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FinalizeGroup"); err != nil {
		return nil, err
	}
	g, ok := f.groups[groupID]
	if !ok {
		return nil, httpErr(http.StatusNotFound)
	}
	if !g.IsOwner(userID) {
		return nil, httpErr(http.StatusForbidden)
	}
	if err := g.Finalize(t0); err != nil {
		return nil, httpErr(http.StatusBadRequest)
	}
	cp := *g
	return &cp, nil
}

func (f *fakeAPI) StartCountdown(ctx context.Context, groupID, userID, templateID string) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("StartCountdown"); err != nil {
		return nil, err
	}
	g, ok := f.groups[groupID]
	if !ok {
		return nil, httpErr(http.StatusNotFound)
	}
	if !g.IsOwner(userID) {
		return nil, httpErr(http.StatusForbidden)
	}
	if !f.members[groupID].AllReady() {
		return nil, httpErr(http.StatusBadRequest)
	}
	// The server clock runs a little ahead of the device.
	if err := g.ScheduleCapture(t0.Add(time.Second), 10*time.Second, templateID); err != nil {
		return nil, httpErr(http.StatusBadRequest)
	}
	cp := *g
	return &cp, nil
}

func (f *fakeAPI) MarkReady(ctx context.Context, groupID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("MarkReady"); err != nil {
		return err
	}
	m := f.members[groupID].Find(userID)
	if m == nil {
		return httpErr(http.StatusNotFound)
	}
	m.MarkReady(t0)
	return nil
}

func (f *fakeAPI) LeaveGroup(ctx context.Context, groupID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("LeaveGroup"); err != nil {
		return err
	}
	g, ok := f.groups[groupID]
	if !ok {
		return httpErr(http.StatusNotFound)
	}
	if err := g.RemoveMember(t0); err != nil {
		return httpErr(http.StatusBadRequest)
	}
	ms := f.members[groupID]
	for i := range ms {
		if ms[i].UserID == userID {
			f.members[groupID] = append(ms[:i:i], ms[i+1:]...)
			return nil
		}
	}
	return httpErr(http.StatusNotFound)
}

func (f *fakeAPI) DeleteGroup(ctx context.Context, groupID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteGroup"); err != nil {
		return err
	}
	g, ok := f.groups[groupID]
	if !ok {
		return httpErr(http.StatusNotFound)
	}
	if !g.IsOwner(userID) {
		return httpErr(http.StatusForbidden)
	}
	delete(f.groups, groupID)
	delete(f.members, groupID)
	return nil
}

func (f *fakeAPI) UploadPhoto(ctx context.Context, in groupapi.UploadPhotoInput) (*models.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UploadPhoto"); err != nil {
		return nil, err
	}
	p := models.Photo{
		ID:          fmt.Sprintf("P%d", len(f.photos[in.GroupID])+1),
		GroupID:     in.GroupID,
		UserID:      in.UserID,
		FrameIndex:  in.FrameIndex,
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
		UploadedAt:  t0,
	}
	f.photos[in.GroupID] = append(f.photos[in.GroupID], p)
	return &p, nil
}

func (f *fakeAPI) ListPhotos(ctx context.Context, groupID string) ([]models.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListPhotos"); err != nil {
		return nil, err
	}
	return append([]models.Photo(nil), f.photos[groupID]...), nil
}

// fakeUsers resolves display names.
type fakeUsers map[string]string

func (u fakeUsers) CreateUser(ctx context.Context, displayName string) (*models.User, error) {
	id := fmt.Sprintf("U%d", len(u)+1)
	u[id] = displayName
	return &models.User{ID: id, DisplayName: displayName}, nil
}

func (u fakeUsers) GetUser(ctx context.Context, userID string) (*models.User, error) {
	name, ok := u[userID]
	if !ok {
		return nil, httpErr(http.StatusNotFound)
	}
	return &models.User{ID: userID, DisplayName: name}, nil
}
