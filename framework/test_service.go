package framework

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cmdhub/command-contract-tests/framework/paging"
	"github.com/cmdhub/command-contract-tests/servicedef"
)

// TestServiceInfo is status information returned by the test service from the initial status query.
type TestServiceInfo = servicedef.StatusResponse

func queryTestServiceInfo(client *http.Client, url string, timeout time.Duration, output io.Writer) (TestServiceInfo, error) {
	fmt.Fprintf(output, "Connecting to test service at %s", url)

	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprintf(output, ".")
		resp, err := client.Get(url + "/")
		if err == nil {
			fmt.Fprintln(output)
			respData, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode != 200 {
				return TestServiceInfo{}, fmt.Errorf("test service returned status code %d", resp.StatusCode)
			}
			if readErr != nil {
				return TestServiceInfo{}, readErr
			}
			if len(respData) == 0 {
				fmt.Fprintf(output, "Status query successful, but service provided no metadata\n")
				return TestServiceInfo{}, nil
			}
			fmt.Fprintf(output, "Status query returned metadata: %s\n", string(respData))
			var info TestServiceInfo
			if err := json.Unmarshal(respData, &info); err != nil {
				return TestServiceInfo{}, fmt.Errorf("malformed status response from test service: %s", string(respData))
			}
			return info, nil
		}
		if !time.Now().Before(deadline) {
			return TestServiceInfo{}, fmt.Errorf("timed out, result of last query was: %w", err)
		}
		time.Sleep(time.Millisecond * 100)
	}
}

// StopService tells the test service that it should exit.
func (h *TestHarness) StopService() error {
	req, _ := http.NewRequest("DELETE", h.testServiceBaseURL+"/", nil)
	resp, err := h.client.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("service returned HTTP %d", resp.StatusCode)
		}
	}
	// It's normal for the request to return an I/O error if the service immediately quit before sending a response
	return nil
}

// SubmitCommand posts a command to the service. A non-2xx response is returned as a
// *paging.UnexpectedStatusError carrying the response body.
func (h *TestHarness) SubmitCommand(
	params servicedef.CommandParams,
	payload []byte,
	logger Logger,
) (servicedef.CommandResponse, error) {
	if logger == nil {
		logger = NullLogger()
	}

	values := url.Values{}
	values.Set(servicedef.ParamCommand, params.Command)
	values.Set(servicedef.ParamVersion, strconv.Itoa(params.Version))
	values.Set(servicedef.ParamCertname, params.Certname)
	if params.ProducerTimestamp != "" {
		values.Set(servicedef.ParamProducerTimestamp, params.ProducerTimestamp)
	}
	if params.Callback != "" {
		values.Set(servicedef.ParamCallback, params.Callback)
	}

	logger.Printf("Submitting command %q v%d for %s (%d bytes)", params.Command, params.Version, params.Certname, len(payload))
	req, err := http.NewRequest("POST", h.testServiceBaseURL+servicedef.CommandsPath+"?"+values.Encode(), bytes.NewBuffer(payload))
	if err != nil {
		return servicedef.CommandResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if params.Compression != "" {
		req.Header.Set("Content-Encoding", params.Compression)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return servicedef.CommandResponse{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return servicedef.CommandResponse{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Printf("Command was rejected with status %d: %s", resp.StatusCode, string(data))
		return servicedef.CommandResponse{}, &paging.UnexpectedStatusError{Status: resp.StatusCode, Body: string(data)}
	}
	var cr servicedef.CommandResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return servicedef.CommandResponse{}, fmt.Errorf("malformed command response from test service: %s", string(data))
	}
	logger.Printf("Command accepted as %s", cr.UUID)
	return cr, nil
}
