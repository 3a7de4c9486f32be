package tiko

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const defaultRoomsData = `{"property":{"rooms":[
	{"id":42,"name":"Lounge","currentTemperatureDegrees":19.5,"targetTemperatureDegrees":21.0,"humidity":55.0,"status":{"heatingOperating":true,"disconnected":false}},
	{"id":43,"name":"Bedroom","currentTemperatureDegrees":17.2,"targetTemperatureDegrees":null,"humidity":null,"status":{"heatingOperating":false,"disconnected":true}}
]}}`

const defaultDevicesData = `{"property":{"devices":[
	{"id":7,"code":"A1B2","type":"heater","name":"Lounge heater","mac":"aa:bb:cc:dd:ee:ff"}
],"externalDevices":[{"id":1,"name":"meter"}]}}`

// fakeService emulates the remote GraphQL endpoint: primer GET on the
// root URL, operation dispatch on operationName, token issuance on
// LogIn, and scripted failures.
type fakeService struct {
	t  *testing.T
	mu sync.Mutex

	primeCount   int
	loginCount   int
	roomsCount   int
	devicesCount int

	loginError     string // GraphQL error message returned by LogIn
	zeroProperties bool

	validTokens   map[string]bool
	expiredTokens map[string]bool
	expireAll     bool // every token, including future ones, is expired

	failStatus  int    // non-zero: authorized ops reply with this HTTP status
	htmlReplies bool   // authorized ops reply with an HTML page
	roomsData   string // data payload for GetRooms
	devicesData string

	adjustError string // GraphQL error message for the adjust mutation
	lastAdjust  map[string]any
	lastMode    map[string]any

	roomsGate    chan struct{} // when set, GetRooms blocks until closed
	roomsEntered chan struct{}

	server *httptest.Server
}

func newFakeService(t *testing.T) *fakeService {
	f := &fakeService{
		t:             t,
		validTokens:   make(map[string]bool),
		expiredTokens: make(map[string]bool),
		roomsData:     defaultRoomsData,
		devicesData:   defaultDevicesData,
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeService) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/" {
		f.mu.Lock()
		f.primeCount++
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.URL.Path != "/api/v3/graphql/" || r.Method != http.MethodPost {
		f.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req struct {
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		f.t.Errorf("bad request body: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if req.OperationName == "LogIn" {
		f.handleLogin(w, req.Variables)
		return
	}
	f.handleAuthorized(w, r, req.OperationName, req.Variables)
}

func (f *fakeService) handleLogin(w http.ResponseWriter, variables map[string]any) {
	f.mu.Lock()
	f.loginCount++
	count := f.loginCount
	loginError := f.loginError
	zeroProperties := f.zeroProperties
	f.mu.Unlock()

	if email, _ := variables["email"].(string); email == "" {
		f.t.Errorf("login without email")
	}

	if loginError != "" {
		writeGraphQLErrors(w, loginError)
		return
	}
	if zeroProperties {
		writeGraphQLData(w, `{"logIn":{"token":"tok-none","user":{"id":7,"properties":[]}}}`)
		return
	}

	token := fmt.Sprintf("tok-%d", count)
	f.mu.Lock()
	f.validTokens[token] = true
	f.mu.Unlock()
	writeGraphQLData(w, fmt.Sprintf(`{"logIn":{"token":"%s","user":{"id":7,"properties":[{"id":99}]}}}`, token))
}

func (f *fakeService) handleAuthorized(w http.ResponseWriter, r *http.Request, op string, variables map[string]any) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Token ")

	f.mu.Lock()
	valid := f.validTokens[token] && !f.expiredTokens[token] && !f.expireAll
	failStatus := f.failStatus
	htmlReplies := f.htmlReplies
	f.mu.Unlock()

	if !valid {
		writeGraphQLErrors(w, "Authentication failed")
		return
	}
	if propertyID, ok := variables["propertyId"].(float64); !ok || propertyID != 99 {
		f.t.Errorf("%s: propertyId = %v, want 99", op, variables["propertyId"])
	}
	if failStatus != 0 {
		w.WriteHeader(failStatus)
		_, _ = io.WriteString(w, "upstream error")
		return
	}
	if htmlReplies {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html>maintenance</html>")
		return
	}

	switch op {
	case "GetRooms":
		f.mu.Lock()
		f.roomsCount++
		gate := f.roomsGate
		entered := f.roomsEntered
		data := f.roomsData
		f.mu.Unlock()
		if entered != nil {
			select {
			case entered <- struct{}{}:
			default:
			}
		}
		if gate != nil {
			<-gate
		}
		writeGraphQLData(w, data)
	case "GetDevices":
		f.mu.Lock()
		f.devicesCount++
		data := f.devicesData
		f.mu.Unlock()
		writeGraphQLData(w, data)
	case "SET_PROPERTY_ROOM_ADJUST_TEMPERATURE":
		f.mu.Lock()
		f.lastAdjust = variables
		adjustError := f.adjustError
		f.mu.Unlock()
		if adjustError != "" {
			writeGraphQLErrors(w, adjustError)
			return
		}
		writeGraphQLData(w, `{"setRoomAdjustTemperature":{"id":42}}`)
	case "SetMode":
		f.mu.Lock()
		f.lastMode = variables
		f.mu.Unlock()
		writeGraphQLData(w, `{"setPropertyMode":{"id":99,"mode":"frost"}}`)
	default:
		f.t.Errorf("unexpected operation %q", op)
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeService) set(mutate func(*fakeService)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f)
}

func (f *fakeService) counts() (primes, logins, rooms, devices int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.primeCount, f.loginCount, f.roomsCount, f.devicesCount
}

func writeGraphQLData(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"data":`+data+`}`)
}

func writeGraphQLErrors(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	payload, _ := json.Marshal(map[string]any{
		"errors": []map[string]string{{"message": msg}},
	})
	_, _ = w.Write(payload)
}

func newTestClient(t *testing.T, f *fakeService) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Credentials: Credentials{Email: "user@example.com", Password: "secret"},
		BaseURL:     f.server.URL,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func newTestCoordinator(t *testing.T, f *fakeService) *Coordinator {
	t.Helper()
	coordinator, err := NewCoordinator(Config{
		Credentials:  Credentials{Email: "user@example.com", Password: "secret"},
		BaseURL:      f.server.URL,
		PollInterval: time.Hour,
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return coordinator
}
