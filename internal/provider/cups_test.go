package provider

import (
	"errors"
	"io"
	"strings"
	"testing"

	ipp "github.com/phin1x/go-ipp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openspool/printtrack/internal/domain"
)

// fakeAdapter answers IPP requests in-process, dispatching on the operation
// code the client encodes.
type fakeAdapter struct {
	respond func(req *ipp.Request) (*ipp.Response, error)
}

func (a *fakeAdapter) SendRequest(url string, req *ipp.Request, _ io.Writer) (*ipp.Response, error) {
	return a.respond(req)
}

func (a *fakeAdapter) GetHttpUri(namespace string, object interface{}) string { return namespace }

func (a *fakeAdapter) TestConnection() error { return nil }

func adapterClient(respond func(req *ipp.Request) (*ipp.Response, error)) *CUPSClient {
	return &CUPSClient{ipp: ipp.NewCUPSClientWithAdapter("test", &fakeAdapter{respond: respond})}
}

func attr(value interface{}) []ipp.Attribute {
	return []ipp.Attribute{{Value: value}}
}

func printersResponse(printers ...ipp.Attributes) *ipp.Response {
	resp := ipp.NewResponse(0, 1)
	resp.PrinterAttributes = printers
	return resp
}

func TestMapJobState(t *testing.T) {
	tests := []struct {
		raw  int
		want domain.JobState
	}{
		{3, domain.StatePending},
		{4, domain.StateHeld},
		{5, domain.StateProcessing},
		{6, domain.StateHeld},
		{7, domain.StateCanceled},
		{8, domain.StateAborted},
		{9, domain.StateCompleted},
		{0, domain.StatePending},
		{99, domain.StatePending},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, mapJobState(tt.raw), "raw state %d", tt.raw)
	}
}

func TestPrinterAvailable(t *testing.T) {
	idle := PrinterInfo{State: 3, AcceptingJobs: true}
	assert.True(t, idle.Available())

	printing := PrinterInfo{State: 4, AcceptingJobs: true}
	assert.True(t, printing.Available())

	stopped := PrinterInfo{State: 5, AcceptingJobs: true}
	assert.False(t, stopped.Available())

	rejecting := PrinterInfo{State: 3, AcceptingJobs: false}
	assert.False(t, rejecting.Available())
}

func TestIsIPPNotFound(t *testing.T) {
	notFound := ipp.IPPError{Status: ippStatusNotFound}
	assert.True(t, isIPPNotFound(notFound))

	serverErr := ipp.IPPError{Status: 0x0500}
	assert.False(t, isIPPNotFound(serverErr))

	assert.False(t, isIPPNotFound(errors.New("connection refused")))
}

func TestWrapProviderErrMarksUnavailable(t *testing.T) {
	err := wrapProviderErr("get printers", errors.New("connection refused"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPrintersFromCUPSEnumeration(t *testing.T) {
	client := adapterClient(func(req *ipp.Request) (*ipp.Response, error) {
		require.Equal(t, ipp.OperationCupsGetPrinters, req.Operation)
		return printersResponse(
			ipp.Attributes{
				"printer-name":              attr("office"),
				"printer-info":              attr("Office LaserJet"),
				"printer-location":          attr("2nd floor"),
				"printer-state":             attr(3),
				"printer-is-accepting-jobs": attr(true),
			},
			ipp.Attributes{
				"printer-name":              attr("lobby"),
				"printer-state":             attr(5),
				"printer-is-accepting-jobs": attr(true),
			},
		), nil
	})

	printers, err := client.Printers()
	require.NoError(t, err)
	require.Len(t, printers, 2)

	byName := map[string]PrinterInfo{}
	for _, p := range printers {
		byName[p.Name] = p
	}
	office := byName["office"]
	assert.Equal(t, "Office LaserJet", office.Info)
	assert.Equal(t, "2nd floor", office.Location)
	assert.True(t, office.Available())

	lobby := byName["lobby"]
	assert.True(t, lobby.AcceptingJobs)
	assert.False(t, lobby.Available(), "stopped printer is not available")
}

func TestPrintersAvailabilityFallsBackToPrinterType(t *testing.T) {
	client := adapterClient(func(req *ipp.Request) (*ipp.Response, error) {
		switch req.Operation {
		case ipp.OperationCupsGetPrinters:
			return printersResponse(ipp.Attributes{
				"printer-name":  attr("office"),
				"printer-state": attr(3),
				"printer-type":  attr(cupsPrinterRejecting),
			}), nil
		case ipp.OperationGetPrinterAttributes:
			// Detail query has no accepting attribute either.
			return printersResponse(ipp.Attributes{
				"printer-name": attr("office"),
			}), nil
		default:
			t.Fatalf("unexpected operation %d", req.Operation)
			return nil, nil
		}
	})

	printers, err := client.Printers()
	require.NoError(t, err)
	require.Len(t, printers, 1)
	assert.False(t, printers[0].AcceptingJobs, "rejecting bit in printer-type wins when the attribute is absent")
}

func TestPrinterNotFound(t *testing.T) {
	client := adapterClient(func(req *ipp.Request) (*ipp.Response, error) {
		return printersResponse(), nil
	})

	_, err := client.Printer("ghost")
	assert.ErrorIs(t, err, domain.ErrPrinterNotFound)
}

func TestSubmitReturnsPrinterJobID(t *testing.T) {
	client := adapterClient(func(req *ipp.Request) (*ipp.Response, error) {
		switch req.Operation {
		case ipp.OperationCupsGetPrinters:
			return printersResponse(ipp.Attributes{
				"printer-name":              attr("office"),
				"printer-state":             attr(3),
				"printer-is-accepting-jobs": attr(true),
			}), nil
		case ipp.OperationPrintJob:
			assert.Equal(t, "report.pdf", req.JobAttributes["job-name"])
			assert.Equal(t, "a4", req.JobAttributes["media"])
			resp := ipp.NewResponse(0, 1)
			resp.JobAttributes = []ipp.Attributes{{"job-id": attr(17)}}
			return resp, nil
		default:
			t.Fatalf("unexpected operation %d", req.Operation)
			return nil, nil
		}
	})

	doc := Document{
		Reader:   strings.NewReader("%PDF-1.4"),
		Size:     8,
		Name:     "report.pdf",
		MimeType: "application/pdf",
	}
	jobID, err := client.Submit("office", doc, map[string]string{"media": "a4"}, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, 17, jobID)
}

func TestJobStatusTranslatesAttributes(t *testing.T) {
	client := adapterClient(func(req *ipp.Request) (*ipp.Response, error) {
		require.Equal(t, ipp.OperationGetJobAttributes, req.Operation)
		resp := ipp.NewResponse(0, 1)
		resp.JobAttributes = []ipp.Attributes{{
			"job-state":                 attr(5),
			"job-state-reasons":         attr("job-printing"),
			"job-state-message":         attr("printing page 2"),
			"job-impressions-completed": attr(2),
		}}
		return resp, nil
	})

	status, err := client.JobStatus(17)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessing, status.State)
	assert.Equal(t, 5, status.RawState)
	assert.Equal(t, "printing page 2", status.Message)
	assert.Equal(t, 2, status.PagesCompleted)
	assert.Equal(t, []string{"job-printing"}, status.StateReasons)
}

func TestJobStatusNotFound(t *testing.T) {
	client := adapterClient(func(req *ipp.Request) (*ipp.Response, error) {
		return nil, ipp.IPPError{Status: ippStatusNotFound, Message: "job not found"}
	})

	_, err := client.JobStatus(17)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobStatusUnreachable(t *testing.T) {
	client := adapterClient(func(req *ipp.Request) (*ipp.Response, error) {
		return nil, errors.New("connection refused")
	})

	_, err := client.JobStatus(17)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCancel(t *testing.T) {
	var canceled bool
	client := adapterClient(func(req *ipp.Request) (*ipp.Response, error) {
		require.Equal(t, ipp.OperationCancelJob, req.Operation)
		canceled = true
		return ipp.NewResponse(0, 1), nil
	})

	require.NoError(t, client.Cancel(17))
	assert.True(t, canceled)
}

func TestCancelNotFound(t *testing.T) {
	client := adapterClient(func(req *ipp.Request) (*ipp.Response, error) {
		return nil, ipp.IPPError{Status: ippStatusNotFound, Message: "gone"}
	})

	assert.ErrorIs(t, client.Cancel(17), domain.ErrJobNotFound)
}
