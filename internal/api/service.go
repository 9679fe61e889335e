package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "accounts.v1.AccountService"

// Full method names, as seen by interceptors.
const (
	RegisterMethod       = "/" + ServiceName + "/Register"
	LoginMethod          = "/" + ServiceName + "/Login"
	MeMethod             = "/" + ServiceName + "/Me"
	UpdateProfileMethod  = "/" + ServiceName + "/UpdateProfile"
	ChangePasswordMethod = "/" + ServiceName + "/ChangePassword"
	AssignRolesMethod    = "/" + ServiceName + "/AssignRoles"
	ListAccountsMethod   = "/" + ServiceName + "/ListAccounts"
	PingMethod           = "/" + ServiceName + "/Ping"
)

type AccountServiceServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Me(context.Context, *MeRequest) (*MeResponse, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*UpdateProfileResponse, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*ChangePasswordResponse, error)
	AssignRoles(context.Context, *AssignRolesRequest) (*AssignRolesResponse, error)
	ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

// UnimplementedAccountServiceServer answers every method with
// codes.Unimplemented. Embed it to stay forward compatible.
type UnimplementedAccountServiceServer struct{}

func (UnimplementedAccountServiceServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedAccountServiceServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedAccountServiceServer) Me(context.Context, *MeRequest) (*MeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Me not implemented")
}
func (UnimplementedAccountServiceServer) UpdateProfile(context.Context, *UpdateProfileRequest) (*UpdateProfileResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateProfile not implemented")
}
func (UnimplementedAccountServiceServer) ChangePassword(context.Context, *ChangePasswordRequest) (*ChangePasswordResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ChangePassword not implemented")
}
func (UnimplementedAccountServiceServer) AssignRoles(context.Context, *AssignRolesRequest) (*AssignRolesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AssignRoles not implemented")
}
func (UnimplementedAccountServiceServer) ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAccounts not implemented")
}
func (UnimplementedAccountServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

// unaryHandler adapts a typed server method to grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(AccountServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AccountServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AccountServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes AccountService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(RegisterMethod, AccountServiceServer.Register)},
		{MethodName: "Login", Handler: unaryHandler(LoginMethod, AccountServiceServer.Login)},
		{MethodName: "Me", Handler: unaryHandler(MeMethod, AccountServiceServer.Me)},
		{MethodName: "UpdateProfile", Handler: unaryHandler(UpdateProfileMethod, AccountServiceServer.UpdateProfile)},
		{MethodName: "ChangePassword", Handler: unaryHandler(ChangePasswordMethod, AccountServiceServer.ChangePassword)},
		{MethodName: "AssignRoles", Handler: unaryHandler(AssignRolesMethod, AccountServiceServer.AssignRoles)},
		{MethodName: "ListAccounts", Handler: unaryHandler(ListAccountsMethod, AccountServiceServer.ListAccounts)},
		{MethodName: "Ping", Handler: unaryHandler(PingMethod, AccountServiceServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "accounts/v1/accounts.json",
}

func RegisterAccountServiceServer(s grpc.ServiceRegistrar, srv AccountServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
