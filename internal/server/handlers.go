package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"adsbsynth/internal/aircraft"
	"adsbsynth/internal/detection"
)

// flightWidth is the fixed callsign width tar1090 expects
const flightWidth = 8

// Aircraft is one tar1090 aircraft entry
type Aircraft struct {
	Hex         string  `json:"hex"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	AltBaro     int     `json:"alt_baro"`
	AltGeom     int     `json:"alt_geom"`
	GroundSpeed float64 `json:"gs"`
	Track       float64 `json:"track"`
	TrueHeading float64 `json:"true_heading"`
	Flight      string  `json:"flight"`
	SeenPos     float64 `json:"seen_pos"`
}

// AircraftResponse is the tar1090 aircraft.json document
type AircraftResponse struct {
	Now      float64    `json:"now"`
	Aircraft []Aircraft `json:"aircraft"`
}

// TruthAircraft is the true state of one aircraft
type TruthAircraft struct {
	Hex         string  `json:"hex"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	AltGeom     int     `json:"alt_geom"`
	GroundSpeed float64 `json:"gs"`
	Track       float64 `json:"track"`
}

// TruthResponse lists every aircraft including those without a transponder
type TruthResponse struct {
	Now      float64         `json:"now"`
	Aircraft []TruthAircraft `json:"aircraft"`
}

// DetectionResponse is the blah2 detection document
type DetectionResponse struct {
	Timestamp int64     `json:"timestamp"` // milliseconds
	Delay     []float64 `json:"delay"`     // km
	Doppler   []float64 `json:"doppler"`   // Hz
	SNR       []float64 `json:"snr"`       // dB
	Status    string    `json:"status"`
}

// Location is a blah2 site position
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// ConfigResponse is the blah2 config document
type ConfigResponse struct {
	Location struct {
		RX Location `json:"rx"`
		TX Location `json:"tx"`
	} `json:"location"`
	Capture struct {
		FC float64 `json:"fc"`
	} `json:"capture"`
	Truth struct {
		ADSB struct {
			Tar1090 string `json:"tar1090"`
		} `json:"adsb"`
	} `json:"truth"`
	RadarID   string  `json:"radar_id"`
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

// RadarsResponse lists the configured radars
type RadarsResponse struct {
	Default string            `json:"default"`
	Radars  []detection.Radar `json:"radars"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func padFlight(flight string) string {
	return fmt.Sprintf("%-*s", flightWidth, flight)
}

// tar1090Aircraft converts a report into its tar1090 entry
func tar1090Aircraft(r aircraft.Report) Aircraft {
	return Aircraft{
		Hex:         r.ICAO,
		Lat:         round(r.Lat, 6),
		Lon:         round(r.Lon, 6),
		AltBaro:     r.AltBaroFt,
		AltGeom:     r.AltGeomFt,
		GroundSpeed: round(r.GroundSpeed, 1),
		Track:       round(r.Track, 2),
		TrueHeading: round(r.TrueHeading, 2),
		Flight:      padFlight(r.Flight),
		SeenPos:     r.SeenPos,
	}
}

func (s *Server) handleAircraft(w http.ResponseWriter, r *http.Request) {
	now, t := s.scenarioTime()

	reports := s.backend.Fleet.ReportedFeed(t)
	resp := AircraftResponse{
		Now:      unixSeconds(now),
		Aircraft: make([]Aircraft, 0, len(reports)),
	}
	for _, rep := range reports {
		resp.Aircraft = append(resp.Aircraft, tar1090Aircraft(rep))
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTruth(w http.ResponseWriter, r *http.Request) {
	now, t := s.scenarioTime()

	states := s.backend.Fleet.TrueStates(t)
	resp := TruthResponse{
		Now:      unixSeconds(now),
		Aircraft: make([]TruthAircraft, 0, len(states)),
	}
	for _, st := range states {
		resp.Aircraft = append(resp.Aircraft, TruthAircraft{
			Hex:         st.ICAO,
			Lat:         round(st.Lat, 6),
			Lon:         round(st.Lon, 6),
			AltGeom:     st.AltGeomFt,
			GroundSpeed: round(st.GroundSpeed, 1),
			Track:       round(st.Track, 2),
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

// resolveQueryRadar picks the radar named by the radar query parameter,
// falling back to the default radar
func (s *Server) resolveQueryRadar(r *http.Request) detection.Radar {
	id := r.URL.Query().Get("radar")
	if id == "" {
		return s.backend.Registry.Default()
	}

	radar, fallback := s.backend.Registry.Resolve(id)
	if fallback {
		s.logger.WithFields(logrus.Fields{
			"requested": id,
			"serving":   radar.ID,
		}).Warn("Unknown radar requested, serving default radar")
	}
	return radar
}

func (s *Server) handleDefaultDetection(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.detectionResponse(s.resolveQueryRadar(r)))
}

func (s *Server) handleDefaultConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.configResponse(s.resolveQueryRadar(r)))
}

func (s *Server) lookupRadar(w http.ResponseWriter, r *http.Request) (detection.Radar, bool) {
	radar, err := s.backend.Registry.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, detection.ErrUnknownRadar) {
			respondError(w, http.StatusNotFound, err.Error())
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return detection.Radar{}, false
	}
	return radar, true
}

func (s *Server) handleRadarDetection(w http.ResponseWriter, r *http.Request) {
	radar, ok := s.lookupRadar(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.detectionResponse(radar))
}

func (s *Server) handleRadarConfig(w http.ResponseWriter, r *http.Request) {
	radar, ok := s.lookupRadar(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.configResponse(radar))
}

func (s *Server) handleRadars(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RadarsResponse{
		Default: s.backend.Registry.Default().ID,
		Radars:  s.backend.Registry.Radars(),
	})
}

// detectionResponse synthesizes detections for every aircraft, equipped or
// not, as seen by radar
func (s *Server) detectionResponse(radar detection.Radar) DetectionResponse {
	now, t := s.scenarioTime()

	dets := s.backend.Synthesizer.Synthesize(s.backend.Fleet.TrueStates(t), radar)
	resp := DetectionResponse{
		Timestamp: now.UnixMilli(),
		Delay:     make([]float64, 0, len(dets)),
		Doppler:   make([]float64, 0, len(dets)),
		SNR:       make([]float64, 0, len(dets)),
		Status:    "active",
	}
	for _, d := range dets {
		resp.Delay = append(resp.Delay, round(d.BistaticRangeM, 2)/1000)
		resp.Doppler = append(resp.Doppler, round(d.DopplerHz, 2))
		resp.SNR = append(resp.SNR, d.SNRDB)
	}
	return resp
}

func (s *Server) configResponse(radar detection.Radar) ConfigResponse {
	var resp ConfigResponse
	resp.Location.RX = Location{Latitude: radar.Lat, Longitude: radar.Lon, Altitude: radar.AltM}
	tx := s.backend.Transmitter
	resp.Location.TX = Location{Latitude: tx.Lat, Longitude: tx.Lon, Altitude: tx.AltM}
	resp.Capture.FC = radar.FrequencyHz
	resp.Truth.ADSB.Tar1090 = s.truthURL()
	resp.RadarID = radar.ID
	resp.Status = "operational"
	resp.Timestamp = unixSeconds(s.now())
	return resp
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
