package core

import (
	"sort"
	"strconv"
	"sync"
)

// Enumeration maps symbolic names to wire values. Empty entries are
// skipped, so Values[i] == "" reserves value i.
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary is the JSON data dictionary the host downloads through
// identify. It lists every message with its id, the device constants and
// the enumerations.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]string
	enumerations  map[string]*Enumeration
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cachedDict    []byte
}

// NewDictionary creates a dictionary describing cmdReg
func NewDictionary(cmdReg *CommandRegistry, version string) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]string),
		enumerations:  make(map[string]*Enumeration),
		commandReg:    cmdReg,
		version:       version,
		buildVersions: "go",
	}
}

// AddConstant adds a constant; the value is rendered as a string
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = valueToString(value)
	d.cachedDict = nil
}

// AddEnumeration adds an enumeration. values is copied.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	valuesCopy := make([]string, len(values))
	copy(valuesCopy, values)
	d.enumerations[name] = &Enumeration{Name: name, Values: valuesCopy}
	d.cachedDict = nil
}

// SetBuildVersions sets the build versions string
func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cachedDict = nil
}

// BuildDictionary renders and caches the dictionary. Call it after every
// message is registered; later registrations are not picked up until the
// next call.
func (d *Dictionary) BuildDictionary() {
	// Fetch from the registry before taking our own lock
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cachedDict = d.buildJSONLocked(commands, responses)
	DebugPrintln("[DICT] built, " + itoa(len(d.cachedDict)) + " bytes")
}

// Generate returns the dictionary JSON, building it if needed
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cachedDict
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}
	d.BuildDictionary()

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cachedDict
}

func (d *Dictionary) buildJSONLocked(commands, responses map[string]int) []byte {
	result := make([]byte, 0, 2048)

	result = append(result, `{"version":`...)
	result = strconv.AppendQuote(result, d.version)
	result = append(result, `,"build_versions":`...)
	result = strconv.AppendQuote(result, d.buildVersions)

	result = append(result, `,"config":{`...)
	for i, name := range sortedKeys(d.constants) {
		if i > 0 {
			result = append(result, ',')
		}
		result = strconv.AppendQuote(result, name)
		result = append(result, ':')
		result = strconv.AppendQuote(result, d.constants[name])
	}

	result = append(result, `},"commands":`...)
	result = appendIDMap(result, commands)
	result = append(result, `,"responses":`...)
	result = appendIDMap(result, responses)

	if len(d.enumerations) > 0 {
		result = append(result, `,"enumerations":{`...)
		names := make([]string, 0, len(d.enumerations))
		for name := range d.enumerations {
			names = append(names, name)
		}
		sort.Strings(names)

		for i, name := range names {
			if i > 0 {
				result = append(result, ',')
			}
			result = strconv.AppendQuote(result, name)
			result = append(result, ":{"...)
			first := true
			for idx, value := range d.enumerations[name].Values {
				if value == "" {
					continue
				}
				if !first {
					result = append(result, ',')
				}
				result = strconv.AppendQuote(result, value)
				result = append(result, ':')
				result = strconv.AppendInt(result, int64(idx), 10)
				first = false
			}
			result = append(result, '}')
		}
		result = append(result, '}')
	}

	return append(result, '}')
}

// appendIDMap writes signature:id pairs ordered by id
func appendIDMap(result []byte, m map[string]int) []byte {
	sigs := make([]string, 0, len(m))
	for sig := range m {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return m[sigs[i]] < m[sigs[j]] })

	result = append(result, '{')
	for i, sig := range sigs {
		if i > 0 {
			result = append(result, ',')
		}
		result = strconv.AppendQuote(result, sig)
		result = append(result, ':')
		result = strconv.AppendInt(result, int64(m[sig]), 10)
	}
	return append(result, '}')
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetChunk returns a copy of up to count bytes starting at offset. An
// offset past the end yields an empty chunk, which ends the host's download.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}

	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}
